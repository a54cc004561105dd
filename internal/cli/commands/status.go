package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/shelfdesk/shelfdesk/internal/cli/auth"
	"github.com/shelfdesk/shelfdesk/internal/library"
)

// NewStatusCmd creates the status command
func NewStatusCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), env)
		},
	}
}

func runStatus(ctx context.Context, env *Env) error {
	if err := env.Session.LoadSession(ctx); err != nil {
		env.Logger.Debug().Err(err).Msg("Session restore failed")
	}

	fmt.Fprintf(env.Out, "API:         %s\n", env.Client.BaseURL())
	fmt.Fprintf(env.Out, "Token store: %s\n", env.Config.TokenStore)

	user := env.Session.User()
	if user == nil {
		fmt.Fprintln(env.Out, "Status:      not logged in")
		return nil
	}

	fmt.Fprintln(env.Out, "Status:      logged in")
	fmt.Fprintf(env.Out, "User:        %s (%s)\n", user.DisplayName(), user.Username)
	fmt.Fprintf(env.Out, "Type:        %s\n", library.UserTypeBadge(user.UserType).Text)
	fmt.Fprintf(env.Out, "Loans:       %d of %d\n", user.BooksIssuedCount, user.MaxBooksAllowed)

	access, err := auth.Lookup(env.Tokens, auth.AccessTokenKey)
	if err != nil || access == "" {
		return nil
	}
	if exp, ok := tokenExpiry(access); ok {
		fmt.Fprintf(env.Out, "Token:       %s\n", describeExpiry(exp, env.Now()))
	}

	return nil
}

// tokenExpiry reads the exp claim without verifying the signature. Display only.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func describeExpiry(exp, now time.Time) string {
	left := exp.Sub(now).Round(time.Second)
	if left <= 0 {
		return fmt.Sprintf("expired at %s (will refresh on next request)", exp.Local().Format(time.Kitchen))
	}
	return fmt.Sprintf("valid for %s", left)
}
