package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/app"
	"github.com/greenbasket/storefront/pkg/auth"
	"github.com/greenbasket/storefront/pkg/cart"
)

func cartCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the shopping cart",
		Long: `Manage the shopping cart. The cart is kept in local storage and
survives between runs and logins.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCart(cmd, g)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the cart",
			RunE: func(cmd *cobra.Command, args []string) error {
				return showCart(cmd, g)
			},
		},
		&cobra.Command{
			Use:   "add <product-id>",
			Short: "Add one unit of a product",
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
					a.Cart.Add(cart.FromAPI(*p))
					success("Added %s to cart", p.Name)
					return printCart(g, a.Cart.Snapshot())
				})
			},
		},
		&cobra.Command{
			Use:   "set <product-id> <quantity>",
			Short: "Set the quantity of a line; 0 removes it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				qty, err := strconv.Atoi(args[1])
				if err != nil {
					return errors.New("E150").WithDetail("Quantity must be a number, got " + strconv.Quote(args[1]))
				}
				return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
					a.Cart.UpdateQuantity(id, qty)
					return printCart(g, a.Cart.Snapshot())
				})
			},
		},
		&cobra.Command{
			Use:     "remove <product-id>",
			Aliases: []string{"rm"},
			Short:   "Remove a line",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
					a.Cart.Remove(id)
					return printCart(g, a.Cart.Snapshot())
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the cart",
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
					a.Cart.Clear()
					success("Cart cleared")
					return nil
				})
			},
		},
	)
	return cmd
}

func showCart(cmd *cobra.Command, g *globals) error {
	return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
		return printCart(g, a.Cart.Snapshot())
	})
}

func printCart(g *globals, s cart.Snapshot) error {
	if g.emit(s) {
		return nil
	}
	if len(s.Items) == 0 {
		info("Your cart is empty")
		return nil
	}
	for _, li := range s.Items {
		info("#%-5d %-24s %3d x %8.2f = %s", li.ProductID, li.Name, li.Quantity, li.UnitPrice, li.Subtotal().StringFixed(2))
	}
	info("%d items, total %s", s.ItemCount, s.Total.StringFixed(2))
	return nil
}

func checkoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for everything in the cart",
		Long: `Place an order for the cart. The cart is emptied only when the
order is accepted; on failure it is left as it was.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				order, err := a.Cart.Checkout(ctx, a.API)
				if err != nil {
					return err
				}
				if g.emit(order) {
					return nil
				}
				success("Order #%d placed", order.ID)
				info("Total: %.2f", order.TotalAmount)
				info("Status: %s", order.Status)
				return nil
			})
		},
	}
}

func ordersCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if !a.Session.Can(auth.CapViewOrders) {
					return errors.New("E031")
				}
				list, err := a.API.Orders(ctx)
				if err != nil {
					return err
				}
				if g.emit(list) {
					return nil
				}
				if list.Count == 0 {
					info("No orders yet")
					return nil
				}
				for _, o := range list.Orders {
					info("#%-5d %-10s %8.2f  %s", o.ID, o.Status, o.TotalAmount, o.CreatedAt)
				}
				return nil
			})
		},
	}
}
