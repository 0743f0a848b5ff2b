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
)

func productsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "Search and list products",
	}
	cmd.AddCommand(searchCmd(g), showProductCmd(g), createProductCmd(g))
	return cmd
}

func searchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find products by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.API.SearchProducts(ctx, args[0])
				if err != nil {
					return err
				}
				if g.emit(res) {
					return nil
				}
				if res.Count == 0 {
					info("No products match %q", res.Query)
					return nil
				}
				for _, p := range res.Products {
					printProduct(p)
				}
				return nil
			})
		},
	}
}

func printProduct(p api.Product) {
	info("#%-5d %-24s %8.2f / %-6s %4d left  by %s", p.ID, p.Name, p.Price, unitOf(p.Unit), p.Quantity, sellerOf(p))
}

func unitOf(u string) string {
	if u == "" {
		return "unit"
	}
	return u
}

func sellerOf(p api.Product) string {
	if p.FarmerUsername != "" {
		return p.FarmerUsername
	}
	if p.Farmer != nil {
		return p.Farmer.Username
	}
	return "unknown"
}

func showProductCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.API.GetProduct(ctx, id)
				if err != nil {
					return err
				}
				if g.emit(p) {
					return nil
				}
				printProduct(*p)
				if p.Description != "" {
					info("%s", p.Description)
				}
				return nil
			})
		},
	}
}

func createProductCmd(g *globals) *cobra.Command {
	var (
		p         api.NewProduct
		photoPath string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "List a product for sale (farmers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Name = args[0]
			if photoPath != "" {
				f, err := os.Open(photoPath)
				if err != nil {
					return errors.New("E150").Wrap(err).WithDetail("Cannot read photo: " + err.Error())
				}
				defer f.Close()
				p.Photo = &api.Attachment{Name: filepath.Base(photoPath), Reader: f}
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if !a.Session.Can(auth.CapSell) {
					return errors.New("E031").WithDetail("Only farmers can list products.")
				}
				created, err := a.API.CreateProduct(ctx, p)
				if err != nil {
					return err
				}
				if g.emit(created) {
					return nil
				}
				success("Listed %s as product #%d", created.Name, created.ID)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&p.Price, "price", 0, "Unit price")
	cmd.Flags().IntVar(&p.Quantity, "quantity", 0, "Quantity in stock")
	cmd.Flags().StringVar(&p.Unit, "unit", "", "Unit of sale (kg, crate, ...)")
	cmd.Flags().StringVar(&p.Category, "category", "", "Category")
	cmd.Flags().StringVar(&p.Description, "description", "", "Description")
	cmd.Flags().StringVar(&p.Location, "location", "", "Where the product is")
	cmd.Flags().StringVar(&photoPath, "photo", "", "Photo to upload")
	return cmd
}

func farmerCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "farmer",
		Short: "Farmer applications",
	}

	var a api.FarmerApplication
	apply := &cobra.Command{
		Use:   "apply <username>",
		Short: "Apply to sell as a farmer",
		Long: `Submit a farmer application. An administrator reviews it; once
approved the account can log in as a farmer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.Username = args[0]
			return g.withApp(cmd, func(ctx context.Context, c *app.App) error {
				res, err := c.API.ApplyAsFarmer(ctx, a)
				if err != nil {
					return err
				}
				if g.emit(res) {
					return nil
				}
				success("Application #%d submitted", res.ID)
				info("Status: %s", res.Status)
				return nil
			})
		},
	}
	apply.Flags().StringVar(&a.Email, "email", "", "Email address")
	apply.Flags().StringVarP(&a.Password, "password", "p", "", "Password for the farmer account")
	apply.Flags().StringVar(&a.FarmName, "farm-name", "", "Farm name")
	apply.Flags().StringVar(&a.Location, "location", "", "Farm location")
	apply.Flags().StringVar(&a.Phone, "phone", "", "Phone number")
	apply.Flags().StringVar(&a.Description, "description", "", "About the farm")

	cmd.AddCommand(apply)
	return cmd
}
