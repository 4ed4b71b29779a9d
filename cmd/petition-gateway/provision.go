// ABOUTME: "provision" command that creates identities directly against the store
// ABOUTME: Used to bootstrap the first super-admin before anyone can log in

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/petition-gateway/internal/account"
	"github.com/2389/petition-gateway/internal/auth"
	"github.com/2389/petition-gateway/internal/gateway"
	"github.com/2389/petition-gateway/internal/srp"
	"github.com/2389/petition-gateway/internal/store"
)

// localActor is the subject recorded for identities created from the command line.
const localActor = "local-cli"

type provisionOptions struct {
	identityID   string
	displayName  string
	role         string
	departmentID string
}

func newProvisionCmd() *cobra.Command {
	var opts provisionOptions

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create an identity with a one-time temporary secret",
		Long: `Creates an identity directly in the configured database, bypassing the HTTP API.

The temporary secret is printed once. Deliver it out of band and ask the
holder to rotate it with "petition-cli rotate" after the first login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProvision(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.identityID, "id", "", "identity ID (required)")
	cmd.Flags().StringVar(&opts.displayName, "display-name", "", "display name (defaults to the ID)")
	cmd.Flags().StringVar(&opts.role, "role", string(store.RoleSuperAdmin), "role: submitter, staff, department-admin, super-admin")
	cmd.Flags().StringVar(&opts.departmentID, "department", "", "department ID (staff and department-admin)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runProvision(ctx context.Context, out io.Writer, opts provisionOptions) error {
	role, err := store.ParseRole(opts.role)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := gateway.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	engine, err := srp.NewEngineByName(cfg.SRP.Group)
	if err != nil {
		return err
	}

	svc := account.New(account.Config{
		Engine: engine,
		Store:  s,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	actor := &auth.Claims{Role: store.RoleSuperAdmin}
	actor.Subject = localActor

	req := account.ProvisionRequest{
		IdentityID:  opts.identityID,
		DisplayName: opts.displayName,
		Role:        role,
	}
	if opts.departmentID != "" {
		req.DepartmentID = &opts.departmentID
	}

	p, err := svc.Provision(ctx, actor, req)
	if err != nil {
		return fmt.Errorf("provisioning %s: %w", opts.identityID, err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprintf(out, "  ✓ Created identity %s\n\n", p.Identity.ID)
	fmt.Fprintf(out, "  Display Name: %s\n", p.Identity.DisplayName)
	fmt.Fprintf(out, "  Role:         %s\n", p.Identity.Role)
	if p.Identity.DepartmentID != nil {
		fmt.Fprintf(out, "  Department:   %s\n", *p.Identity.DepartmentID)
	}
	fmt.Fprintf(out, "  SRP group:    %s\n", engine.Group().Name)
	fmt.Fprintln(out)
	yellow.Fprintln(out, "  Temporary secret (shown once):")
	fmt.Fprintf(out, "    %s\n\n", p.TemporarySecret)
	return nil
}
