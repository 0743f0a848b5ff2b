package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/app"
	"github.com/greenbasket/storefront/pkg/auth"
	"github.com/greenbasket/storefront/pkg/session"
)

func authCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in, log out and register",
	}
	cmd.AddCommand(loginCmd(g), logoutCmd(g), whoamiCmd(g), registerCmd(g))
	return cmd
}

func loginCmd(g *globals) *cobra.Command {
	var password, as string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Long: `Log in to the marketplace. The access token and session cookie are
stored so later commands stay logged in.

Examples:
  storefront auth login kofi --password secret
  storefront auth login admin -p secret --as admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hint, err := auth.ParseRole(as)
			if err != nil {
				return errors.New("E150").WithDetail(err.Error())
			}
			if password == "" {
				password = os.Getenv("STOREFRONT_PASSWORD")
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Session.Login(ctx, args[0], password, hint)
				if err != nil {
					return err
				}
				if g.emit(s) {
					return nil
				}
				success("Logged in as %s (%s)", s.Username, s.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (default $STOREFRONT_PASSWORD)")
	cmd.Flags().StringVar(&as, "as", "", "Expected account type: user, farmer, transporter, admin")
	return cmd
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Session.Logout(ctx); err != nil {
					warn("The server did not confirm the logout: %s", errors.UserMessage(err))
				}
				success("Logged out")
				return nil
			})
		},
	}
}

func whoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				s := a.Session.Current()
				if g.emit(s) {
					return nil
				}
				printSession(s)
				return nil
			})
		},
	}
}

func printSession(s session.Session) {
	if !s.Authenticated() {
		info("Not logged in")
		return
	}
	info("User:   %s (#%d)", s.Username, s.UserID)
	info("Email:  %s", s.Email)
	info("Role:   %s", s.Role)
	if !s.Active {
		warn("This account is inactive")
	}
}

func registerCmd(g *globals) *cobra.Command {
	var (
		reg      api.Registration
		role     string
		certPath string
	)

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Long: `Create a buyer, farmer or transporter account.

A farmer registering with --certification is not logged in: the
account waits for an administrator to approve the application.

Examples:
  storefront auth register ana --email ana@example.com -p secret
  storefront auth register olu --email olu@example.com -p secret \
      --type farmer --farm-name "Olu Farms" --location Ibadan \
      --certification cert.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return errors.New("E150").WithDetail(err.Error())
			}
			reg.Username = args[0]
			reg.Role = r

			if certPath != "" {
				f, err := os.Open(certPath)
				if err != nil {
					return errors.New("E150").Wrap(err).WithDetail("Cannot read certification: " + err.Error())
				}
				defer f.Close()
				reg.Certification = &api.Attachment{Name: filepath.Base(certPath), Reader: f}
			}

			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Session.Register(ctx, reg)
				if err != nil {
					return err
				}
				if g.emit(res) {
					return nil
				}
				switch res.Outcome {
				case session.PendingApproval:
					success("%s", res.Message)
					if res.Application != nil {
						info("Application #%d is %s", res.Application.ID, res.Application.Status)
					}
				default:
					success("Registered and logged in as %s", res.Session.Username)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "Password")
	cmd.Flags().StringVar(&role, "type", "user", "Account type: user, farmer, transporter")
	cmd.Flags().StringVar(&reg.FarmName, "farm-name", "", "Farm name (farmers)")
	cmd.Flags().StringVar(&reg.Location, "location", "", "Farm location (farmers)")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "Phone number (farmers)")
	cmd.Flags().StringVar(&reg.Description, "description", "", "About the farm (farmers)")
	cmd.Flags().StringVar(&certPath, "certification", "", "Certification document to upload (farmers)")
	return cmd
}
