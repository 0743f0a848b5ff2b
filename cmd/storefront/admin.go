package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/app"
	"github.com/greenbasket/storefront/pkg/auth"
)

func adminCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Review farmer applications (administrators)",
	}

	var status string
	list := &cobra.Command{
		Use:   "applications",
		Short: "List farmer applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.asAdmin(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.API.Applications(ctx, api.ApplicationStatus(status))
				if err != nil {
					return err
				}
				if g.emit(res) {
					return nil
				}
				if res.Count == 0 {
					info("No applications")
					return nil
				}
				for _, ap := range res.Applications {
					info("#%-5d %-9s %-16s %-24s %s", ap.ID, ap.Status, ap.Username, ap.FarmName, ap.Location)
				}
				return nil
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter: pending, approved, denied")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count applications by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.asAdmin(cmd, func(ctx context.Context, a *app.App) error {
				st, err := a.API.ApplicationStats(ctx)
				if err != nil {
					return err
				}
				if g.emit(st) {
					return nil
				}
				info("Total:    %d", st.Total)
				info("Pending:  %d", st.Pending)
				info("Approved: %d", st.Approved)
				info("Denied:   %d", st.Denied)
				return nil
			})
		},
	}

	approve := &cobra.Command{
		Use:   "approve <application-id>",
		Short: "Approve an application and create the farmer account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return g.asAdmin(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.API.ApproveApplication(ctx, id)
				if err != nil {
					return err
				}
				return printDecision(g, res)
			})
		},
	}

	var reason string
	deny := &cobra.Command{
		Use:   "deny <application-id>",
		Short: "Deny an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return g.asAdmin(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.API.DenyApplication(ctx, id, reason)
				if err != nil {
					return err
				}
				return printDecision(g, res)
			})
		},
	}
	deny.Flags().StringVar(&reason, "reason", "", "Reason shown to the applicant")

	cmd.AddCommand(list, stats, approve, deny)
	return cmd
}

// asAdmin runs fn when the stored session may review applications.
func (g *globals) asAdmin(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := requireSession(a); err != nil {
			return err
		}
		if !a.Session.Can(auth.CapReviewApplications) {
			return errors.New("E031").WithDetail("Only administrators can review applications.")
		}
		return fn(ctx, a)
	})
}

func printDecision(g *globals, res *api.ApplicationDecision) error {
	if g.emit(res) {
		return nil
	}
	success("%s", res.Message)
	if res.Application != nil {
		info("Application #%d is %s", res.Application.ID, res.Application.Status)
	}
	if res.User != nil {
		info("Farmer account %s (#%d) created", res.User.Username, res.User.ID)
	}
	return nil
}
