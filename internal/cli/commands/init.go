package commands

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/cli/config"
)

type initOptions struct {
	tokenStore string
	project    bool
}

// NewInitCmd creates the init command
func NewInitCmd(env *Env) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Point the CLI at a library server",
		Long: `Write the API URL to ~/.config/shelf/config.yaml, or with --project
to ./shelf.yaml so it applies to this directory and below.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(env, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.tokenStore, "token-store", "", "Where to keep tokens (keyring, file, sqlite, memory)")
	cmd.Flags().BoolVar(&opts.project, "project", false, "Write ./shelf.yaml instead of the user config")

	return cmd
}

func runInit(env *Env, apiURL string, opts initOptions) error {
	if u, err := url.Parse(apiURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API URL %q (expected e.g. https://library.example.edu/api)", apiURL)
	}

	var configPath string
	if opts.project {
		currentDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		configPath = filepath.Join(currentDir, config.ConfigFileName)
	} else {
		p, err := config.UserConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	cfg := config.DefaultConfig()
	isNewConfig := true
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		isNewConfig = false
	}

	cfg.APIURL = apiURL
	if opts.tokenStore != "" {
		cfg.TokenStore = opts.tokenStore
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(env.Out, "✓ Created %s\n", configPath)
	} else {
		fmt.Fprintf(env.Out, "✓ Updated %s\n", configPath)
	}
	fmt.Fprintf(env.Out, "  API: %s\n", cfg.APIURL)

	fmt.Fprintln(env.Out, "\nNext steps:")
	fmt.Fprintln(env.Out, "  1. Run 'shelf register' if you don't have an account yet")
	fmt.Fprintln(env.Out, "  2. Run 'shelf login' to authenticate")

	return nil
}
