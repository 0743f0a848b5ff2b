package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/internal/config"
	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/internal/logging"
	"github.com/greenbasket/storefront/pkg/app"
)

// globals holds the persistent root flags.
type globals struct {
	dir      string
	apiURL   string
	logLevel string
	json     bool
}

func (g *globals) config() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(g.dir)
	if err != nil {
		return nil, err
	}
	if g.apiURL != "" {
		cfg.API.BaseURL = g.apiURL
	}
	if cfg.Storage.Driver == config.DriverFile && !filepath.IsAbs(cfg.Storage.Dir) {
		cfg.Storage.Dir = filepath.Join(g.dir, cfg.Storage.Dir)
	}
	return cfg, nil
}

// logger returns the command logger. Client commands log warnings only
// unless --log-level asks for more; serve uses the configured level.
func (g *globals) logger(cfg *config.Config, fallback string) *slog.Logger {
	level := g.logLevel
	if level == "" {
		level = fallback
	}
	return logging.New(logging.Options{Level: level, Format: cfg.Log.Format, Writer: stderr})
}

// withApp loads config, opens the client, resumes the stored session and
// runs fn. The client is torn down afterwards so the cart and cookies are
// saved.
func (g *globals) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.FromConfig(ctx, cfg, g.logger(cfg, "warn"))
	if err != nil {
		return err
	}
	defer a.Teardown()

	a.Init(ctx)
	return fn(ctx, a)
}

// emit prints v as JSON when --json is set and reports whether it did.
func (g *globals) emit(v any) bool {
	if !g.json {
		return false
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
	return true
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("E150").WithDetail("Expected a positive numeric id, got " + strconv.Quote(arg))
	}
	return id, nil
}

// requireSession fails with E030 when nobody is logged in.
func requireSession(a *app.App) error {
	if !a.Session.Current().Authenticated() {
		return errors.New("E030").WithSuggestion("Run: storefront auth login <username>")
	}
	return nil
}
