package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/cli/auth"
	"github.com/shelfdesk/shelfdesk/internal/cli/client"
	"github.com/shelfdesk/shelfdesk/internal/cli/commands"
	"github.com/shelfdesk/shelfdesk/internal/cli/config"
	"github.com/shelfdesk/shelfdesk/internal/logger"
)

var version = "dev" // Will be set during build

type rootFlags struct {
	apiURL     string
	tokenStore string
	debug      bool
}

// NewRootCmd builds the shelf command tree around env
func NewRootCmd(env *commands.Env) *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:   "shelf",
		Short: "shelf - the library desk in your terminal",
		Long: `shelf is a command line client for the library management system.

Browse the catalog, borrow and renew books, manage reservations and,
for staff, run the circulation desk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip session setup for commands that work without a server
			switch cmd.Name() {
			case "init", "version", "help":
				return nil
			}
			return setupEnv(env, flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "Library API URL (overrides config and SHELF_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.tokenStore, "token-store", "", "Token store: keyring, file, sqlite or memory")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Log API requests to stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(env.Out, "shelf version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd(env))
	rootCmd.AddCommand(commands.NewLoginCmd(env))
	rootCmd.AddCommand(commands.NewLogoutCmd(env))
	rootCmd.AddCommand(commands.NewStatusCmd(env))
	rootCmd.AddCommand(commands.NewRegisterCmd(env))
	rootCmd.AddCommand(commands.NewProfileCmd(env))
	rootCmd.AddCommand(commands.NewBooksCmd(env))
	rootCmd.AddCommand(commands.NewCategoriesCmd(env))
	rootCmd.AddCommand(commands.NewIssueCmd(env))
	rootCmd.AddCommand(commands.NewReturnCmd(env))
	rootCmd.AddCommand(commands.NewRenewCmd(env))
	rootCmd.AddCommand(commands.NewLoansCmd(env))
	rootCmd.AddCommand(commands.NewReserveCmd(env))
	rootCmd.AddCommand(commands.NewReservationsCmd(env))
	rootCmd.AddCommand(commands.NewUsersCmd(env))
	rootCmd.AddCommand(commands.NewStatsCmd(env))

	return rootCmd
}

func setupEnv(env *commands.Env, flags rootFlags) error {
	cfg, path, err := config.Resolve()
	if err != nil {
		return err
	}

	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	if flags.tokenStore != "" {
		cfg.TokenStore = flags.tokenStore
	}
	if flags.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(env.Err, cfg.LogLevel, "console")
	log.Debug().Str("config", path).Str("api", cfg.APIURL).Msg("Configuration loaded")

	tokens, err := auth.New(cfg.TokenStore, auth.Options{
		Scope: cfg.TokenScope(),
		Dir:   cfg.DataDir,
	})
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}

	env.Setup(cfg, tokens, log)
	return nil
}

// Execute runs the root command
func Execute() error {
	env := &commands.Env{Out: os.Stdout, Err: os.Stderr}

	if err := run(context.Background(), env, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, client.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, "Run 'shelf login' to sign in again.")
		}
		return err
	}
	return nil
}

// run executes one command line. The token store is closed even when the command fails.
func run(ctx context.Context, env *commands.Env, args []string) error {
	rootCmd := NewRootCmd(env)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)

	if closer, ok := env.Tokens.(io.Closer); ok {
		if closeErr := closer.Close(); closeErr != nil {
			env.Logger.Warn().Err(closeErr).Msg("Failed to close token store")
		}
	}
	return err
}
