package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/linechat/internal/app"
	"github.com/vovakirdan/linechat/internal/auth"
	"github.com/vovakirdan/linechat/internal/config"
	"github.com/vovakirdan/linechat/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "linechat",
		Short:         "Line-delimited JSON chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the chat server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), opts)
			},
		},
		newTokenCmd(opts),
		newUsersCmd(opts),
	)
	return root
}

// load resolves configuration and the logger for a command.
func (o *rootOptions) load() (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New(o.logLevel)
	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return cfg, bootstrap, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger := log.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("http_addr", cfg.HTTPAddr).Msg("starting linechat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			jwtConfig := &auth.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      cfg.JWTTTL,
			}
			if ttl > 0 {
				jwtConfig.TTL = ttl
			}
			token, err := auth.GenerateToken(jwtConfig, operator)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "admin", "operator name embedded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to jwt_ttl)")
	return cmd
}

func newUsersCmd(opts *rootOptions) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage the user database",
	}
	users.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Print registered users as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				creds, closeStore, err := openCredentials(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer closeStore()
				return exportUsers(cmd.OutOrStdout(), creds)
			},
		},
		&cobra.Command{
			Use:   "import <users.json>",
			Short: "Import users from a legacy JSON users file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[0], err)
				}
				records, err := auth.ParseLegacyUsers(data)
				if err != nil {
					return err
				}

				creds, closeStore, err := openCredentials(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer closeStore()

				added, err := creds.Import(cmd.Context(), records)
				if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d users\n", added, len(records)); werr != nil {
					return werr
				}
				return err
			},
		},
	)
	return users
}

func openCredentials(ctx context.Context, opts *rootOptions) (*auth.Credentials, func(), error) {
	cfg, logger, err := opts.load()
	if err != nil {
		return nil, nil, err
	}
	st, err := app.OpenStore(&cfg)
	if err != nil {
		return nil, nil, err
	}
	creds := auth.NewCredentials(st, cfg.BcryptCost, logger)
	if ctx == nil {
		ctx = context.Background()
	}
	if err := creds.Reload(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return creds, func() { _ = st.Close() }, nil
}

type exportedUser struct {
	Username     string    `yaml:"username"`
	Color        int       `yaml:"color"`
	PasswordHash string    `yaml:"password_hash"`
	CreatedAt    time.Time `yaml:"created_at"`
}

func exportUsers(w io.Writer, creds *auth.Credentials) error {
	users := creds.Users()
	out := make([]exportedUser, 0, len(users))
	for _, u := range users {
		out = append(out, exportedUser{
			Username:     u.Username,
			Color:        u.Color,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt.UTC(),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]exportedUser{"users": out}); err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return enc.Close()
}
