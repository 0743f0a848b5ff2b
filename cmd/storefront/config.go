package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/internal/config"
	"github.com/greenbasket/storefront/internal/errors"
)

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect storefront.json",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a storefront.json with default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(g.dir, config.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New("E150").
					WithDetail(path + " already exists").
					WithSuggestion("Use --force to overwrite it.")
			}
			cfg := config.New()
			if g.apiURL != "" {
				cfg.API.BaseURL = g.apiURL
			}
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			success("Wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if cfg.Gateway.SessionSecret != "" {
				cfg.Gateway.SessionSecret = "********"
			}
			if cfg.Storage.Redis.Password != "" {
				cfg.Storage.Redis.Password = "********"
			}
			g.json = true
			g.emit(cfg)
			return nil
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}
