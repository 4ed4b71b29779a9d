// ABOUTME: Administrator commands for provisioning and removing identities over the HTTP API
// ABOUTME: Requires a saved token for a super-admin or department-admin

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/petition-gateway/internal/api"
	"github.com/2389/petition-gateway/internal/store"
)

func newIdentitiesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identities",
		Short: "Manage identities (administrators only)",
	}
	cmd.AddCommand(newIdentitiesCreateCmd(g), newIdentitiesDeleteCmd(g))
	return cmd
}

func newIdentitiesCreateCmd(g *globals) *cobra.Command {
	var (
		displayName  string
		role         string
		departmentID string
	)

	cmd := &cobra.Command{
		Use:   "create <identity>",
		Short: "Provision an identity and print its temporary secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := store.ParseRole(role)
			if err != nil {
				return err
			}
			c, err := g.requireClient()
			if err != nil {
				return err
			}

			req := api.ProvisionRequest{
				IdentityID:  args[0],
				DisplayName: displayName,
				Role:        r,
			}
			if departmentID != "" {
				req.DepartmentID = &departmentID
			}

			res, err := c.Provision(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ Created %s (%s)\n", res.IdentityID, res.Role)
			if res.DepartmentID != nil {
				fmt.Fprintf(out, "  Department: %s\n", *res.DepartmentID)
			}
			color.New(color.FgYellow).Fprintln(out, "  Temporary secret (shown once):")
			fmt.Fprintf(out, "    %s\n", res.TemporarySecret)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(store.RoleStaff), "role: submitter, staff, department-admin, super-admin")
	cmd.Flags().StringVar(&departmentID, "department", "", "department ID")
	return cmd
}

func newIdentitiesDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <identity>",
		Short: "Remove an identity and its credential (super-admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.requireClient()
			if err != nil {
				return err
			}
			if err := c.DeleteIdentity(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
