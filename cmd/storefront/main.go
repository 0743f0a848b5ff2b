package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Output streams; tests replace them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "storefront",
		Short: "Marketplace client for farmers, buyers and transporters",
		Long: `storefront talks to the marketplace API from the terminal.

It keeps a cart and a login between runs, places orders, files farmer
applications, reviews them as an administrator, and updates deliveries
as a transporter. "storefront serve" runs the same client behind a
browser-facing gateway.

Settings come from storefront.json, .env and STOREFRONT_* variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "Directory holding storefront.json and .env")
	rootCmd.PersistentFlags().StringVar(&g.apiURL, "api", "", "Marketplace API origin (overrides config)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&g.json, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		authCmd(g),
		productsCmd(g),
		cartCmd(g),
		checkoutCmd(g),
		ordersCmd(g),
		farmerCmd(g),
		adminCmd(g),
		deliveryCmd(g),
		serveCmd(g),
		configCmd(g),
		versionCmd(),
	)
	return rootCmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Fprintf(stdout, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Fprintf(stdout, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(stdout, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
