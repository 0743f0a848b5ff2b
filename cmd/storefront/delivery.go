package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/app"
	"github.com/greenbasket/storefront/pkg/auth"
)

func deliveryCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delivery",
		Short: "Track and update deliveries (transporters)",
	}

	packages := &cobra.Command{
		Use:   "packages",
		Short: "List packages assigned to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.asTransporter(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.API.Packages(ctx)
				if err != nil {
					return err
				}
				if g.emit(list) {
					return nil
				}
				if list.Count == 0 {
					info("No packages")
					return nil
				}
				for _, p := range list.Packages {
					info("#%-5d %-12s %-14s %s, %s", p.ID, p.TrackingNumber, p.Status, p.RecipientName, p.RecipientAddress)
				}
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <package-id> <status>",
		Short: "Move a package to pending, picked_up, in_transit, delivered or failed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return g.asTransporter(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.API.UpdatePackageStatus(ctx, id, api.PackageStatus(args[1]))
				if err != nil {
					return err
				}
				if g.emit(p) {
					return nil
				}
				success("Package #%d is now %s", p.ID, p.Status)
				return nil
			})
		},
	}

	cmd.AddCommand(packages, status)
	return cmd
}

func (g *globals) asTransporter(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := requireSession(a); err != nil {
			return err
		}
		if !a.Session.Can(auth.CapDeliver) {
			return errors.New("E031").WithDetail("Only transporters can manage deliveries.")
		}
		return fn(ctx, a)
	})
}
