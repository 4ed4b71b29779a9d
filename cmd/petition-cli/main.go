// ABOUTME: User CLI for petition-gateway: registration, SRP login, session and password rotation
// ABOUTME: Secrets are prompted without echo and never sent; only the session token is stored locally

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/petition-gateway/internal/client"
)

const defaultGatewayURL = "http://localhost:8080"

const banner = `
            _   _ _   _                    _ _
 _ __   ___| |_(_) |_(_) ___  _ __     ___| (_)
| '_ \ / _ \ __| | __| |/ _ \| '_ \   / __| | |
| |_) |  __/ |_| | |_| | (_) | | | | | (__| | |
| .__/ \___|\__|_|\__|_|\___/|_| |_|  \___|_|_|
|_|
`

// globals holds persistent flag values.
type globals struct {
	url       string
	tokenFile string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "petition-cli",
		Short:         "Sign in to a petition gateway without ever sending your password",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if g.url == "" {
				g.url = os.Getenv("PETITION_GATEWAY_URL")
			}
			if g.url == "" {
				g.url = defaultGatewayURL
			}
			if g.tokenFile == "" {
				g.tokenFile = defaultTokenPath()
			}
		},
	}
	root.SetHelpTemplate(color.CyanString(banner) + "\n" + root.HelpTemplate())

	root.PersistentFlags().StringVar(&g.url, "url", "", "gateway base URL (default $PETITION_GATEWAY_URL or "+defaultGatewayURL+")")
	root.PersistentFlags().StringVar(&g.tokenFile, "token-file", "", "where the session token is kept (default $XDG_CONFIG_HOME/petition/token)")

	root.AddCommand(
		newRegisterCmd(g),
		newLoginCmd(g),
		newWhoamiCmd(g),
		newRotateCmd(g),
		newLogoutCmd(g),
		newIdentitiesCmd(g),
		newAuditCmd(g),
	)
	return root
}

// newClient builds a client for g.url, loading the saved token when present.
func (g *globals) newClient() (*client.Client, error) {
	token, err := readToken(g.tokenFile)
	if err != nil {
		return nil, err
	}
	return client.New(g.url, client.WithToken(token))
}

func (g *globals) requireClient() (*client.Client, error) {
	c, err := g.newClient()
	if err != nil {
		return nil, err
	}
	if c.Token() == "" {
		return nil, fmt.Errorf("not logged in; run: petition-cli login <identity>")
	}
	return c, nil
}
