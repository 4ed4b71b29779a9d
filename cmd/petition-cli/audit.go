// ABOUTME: "audit" command listing security events from the gateway
// ABOUTME: Super-admin only; prints a table with tabwriter

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/petition-gateway/internal/client"
)

func newAuditCmd(g *globals) *cobra.Command {
	var (
		q     client.AuditQuery
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent security events (super-admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.requireClient()
			if err != nil {
				return err
			}
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}

			entries, err := c.ListAudit(cmd.Context(), q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No audit entries.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tACTOR\tTARGET")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Action,
					e.ActorID,
					e.TargetID,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&q.Action, "action", "", "filter by action (e.g. login_failed)")
	cmd.Flags().StringVar(&q.ActorID, "actor", "", "filter by acting identity")
	cmd.Flags().StringVar(&q.TargetID, "target", "", "filter by affected identity")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum entries")
	return cmd
}
