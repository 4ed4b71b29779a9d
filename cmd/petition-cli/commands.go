// ABOUTME: Cobra commands for the account lifecycle: register, login, whoami, rotate, logout
// ABOUTME: Each command performs client-side SRP through internal/client

package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/petition-gateway/internal/api"
	"github.com/2389/petition-gateway/internal/client"
)

func newRegisterCmd(g *globals) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "register <identity>",
		Short: "Create a submitter account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			secret, err := promptNewSecret(out, "Password")
			if err != nil {
				return err
			}

			c, err := g.newClient()
			if err != nil {
				return err
			}
			res, err := c.Register(cmd.Context(), args[0], displayName, secret)
			if err != nil {
				if client.IsStatus(err, http.StatusConflict) {
					return fmt.Errorf("identity %q is already registered", args[0])
				}
				return err
			}

			color.New(color.FgGreen).Fprintf(out, "✓ Registered %s (%s)\n", res.IdentityID, res.Role)
			fmt.Fprintf(out, "  Log in with: petition-cli login %s\n", res.IdentityID)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown to staff (defaults to the identity)")
	return cmd
}

func newLoginCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "login <identity>",
		Short: "Authenticate and save a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			secret, err := promptSecret(out, "Password")
			if err != nil {
				return err
			}

			c, err := client.New(g.url)
			if err != nil {
				return err
			}
			res, err := c.Login(cmd.Context(), args[0], secret)
			if err != nil {
				if client.IsStatus(err, http.StatusUnauthorized) {
					return fmt.Errorf("login failed: unknown identity or wrong password")
				}
				return err
			}

			if err := writeToken(g.tokenFile, res.Token); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(out, "✓ Logged in as %s\n", res.Claims.IdentityID)
			printSession(out, &res.Claims)
			return nil
		},
	}
}

func newWhoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.requireClient()
			if err != nil {
				return err
			}
			session, err := c.Session(cmd.Context())
			if err != nil {
				if client.IsStatus(err, http.StatusUnauthorized) {
					return fmt.Errorf("session expired or revoked; log in again")
				}
				return err
			}
			printSession(cmd.OutOrStdout(), session)
			return nil
		},
	}
}

func newRotateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			c, err := g.requireClient()
			if err != nil {
				return err
			}
			session, err := c.Session(cmd.Context())
			if err != nil {
				return err
			}

			current, err := promptSecret(out, "Current password")
			if err != nil {
				return err
			}
			next, err := promptNewSecret(out, "New password")
			if err != nil {
				return err
			}

			if err := c.RotatePassword(cmd.Context(), session.IdentityID, current, next); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintln(out, "✓ Password changed")
			return nil
		},
	}
}

func newLogoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.newClient()
			if err != nil {
				return err
			}
			if c.Token() != "" {
				if err := c.Logout(cmd.Context()); err != nil {
					color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: server logout failed: %v\n", err)
				}
			}
			if err := removeToken(g.tokenFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func printSession(w io.Writer, s *api.Session) {
	fmt.Fprintf(w, "  Identity:   %s\n", s.IdentityID)
	if s.DisplayName != "" {
		fmt.Fprintf(w, "  Name:       %s\n", s.DisplayName)
	}
	fmt.Fprintf(w, "  Role:       %s\n", s.Role)
	if s.DepartmentID != nil {
		fmt.Fprintf(w, "  Department: %s\n", *s.DepartmentID)
	}
	fmt.Fprintf(w, "  Expires:    %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
}
