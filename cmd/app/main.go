package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepdive/internal/auth"
	"deepdive/internal/bootstrap"
	"deepdive/internal/delivery/httpapi"
	"deepdive/internal/logging"
	"deepdive/internal/storage"
	"deepdive/pkg/config"
)

type cli struct {
	configPath string
	email      string
	cfg        *config.Config
	log        *zap.Logger
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "deepdive",
		Short:         "Deep Dive coaching server and maintenance tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./deepdive.yaml or $HOME/.deepdive/deepdive.yaml)")

	cmd.AddCommand(c.serveCmd(), c.migrateCmd(), c.exportCmd(), c.resetCmd())
	return cmd
}

// userContext scopes maintenance commands to one user when --email is set.
func (c *cli) userContext(ctx context.Context) context.Context {
	if c.email == "" {
		return ctx
	}
	return auth.WithUser(ctx, auth.User{Email: c.email})
}

func (c *cli) serveCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.New(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					c.log.Warn("close store", zap.Error(err))
				}
			}()

			srv := httpapi.New(httpapi.Deps{
				Sparring: app.Sparring,
				Coaching: app.Coaching,
				Sessions: app.Sessions,
				Gatherer: app.Registry,
				Log:      c.log,
				Debug:    debug,
			})
			return srv.Run(ctx, c.cfg.HTTPAddr)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.DBPath == "" {
				return errors.New("db.path is not configured")
			}
			db, err := storage.OpenSQLite(cmd.Context(), c.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			c.log.Info("migrations applied", zap.String("path", c.cfg.DBPath))
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all user data as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer app.Close()

			ex, err := app.Sessions.Export(c.userContext(cmd.Context()))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(ex)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&c.email, "email", "", "export the data of this user")
	return cmd
}

func (c *cli) resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			app, err := bootstrap.New(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Sessions.Reset(c.userContext(cmd.Context())); err != nil {
				return err
			}
			c.log.Info("data reset", zap.String("email", c.email))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.Flags().StringVar(&c.email, "email", "", "reset the data of this user")
	return cmd
}
