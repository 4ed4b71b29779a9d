// ABOUTME: "health" command that probes a running gateway
// ABOUTME: Hits GET /health over HTTP using the configured address

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/petition-gateway/internal/client"
)

func newHealthCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				cfg, _, err := loadConfig()
				if err != nil {
					return err
				}
				url = healthURL(cfg.Server.HTTPAddr)
			}

			c, err := client.New(url)
			if err != nil {
				return err
			}
			if err := c.Health(cmd.Context()); err != nil {
				return fmt.Errorf("unhealthy: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "gateway base URL (defaults to server.http_addr)")
	return cmd
}

// healthURL turns a listen address into a reachable base URL.
func healthURL(addr string) string {
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
