package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/shelfdesk/shelfdesk/internal/cli/auth"
	"github.com/shelfdesk/shelfdesk/internal/cli/client"
	"github.com/shelfdesk/shelfdesk/internal/cli/config"
	"github.com/shelfdesk/shelfdesk/internal/cli/picker"
	"github.com/shelfdesk/shelfdesk/internal/cli/session"
	"github.com/shelfdesk/shelfdesk/internal/library"
)

// ErrNotLoggedIn is returned by commands that need a signed-in user
var ErrNotLoggedIn = errors.New("not logged in. Please run 'shelf login' first")

// ErrStaffOnly is returned by commands reserved for library staff
var ErrStaffOnly = errors.New("this command is only available to library staff")

// Env carries the dependencies every command runs with.
// The root command fills it in before any subcommand runs.
type Env struct {
	Config   *config.Config
	Tokens   auth.Store
	Client   *client.Client
	Session  *session.Store
	Services *library.Services
	Logger   zerolog.Logger

	Out io.Writer
	Err io.Writer

	Now          func() time.Time
	Select       picker.Selector
	ReadPassword func(prompt string) (string, error)
}

// Setup wires the request client, services and credential store for cfg and tokens
func (e *Env) Setup(cfg *config.Config, tokens auth.Store, logger zerolog.Logger, opts ...client.Option) {
	e.Config = cfg
	e.Tokens = tokens
	e.Logger = logger

	opts = append([]client.Option{client.WithLogger(logger)}, opts...)
	e.Client = client.New(cfg.APIURL, tokens, opts...)
	e.Services = library.NewServices(e.Client)
	e.Session = session.New(tokens, e.Client, e.Services.Auth, logger)
	e.Client.SetExpiryHandler(e.Session.Expire)

	e.Session.OnLoginRequired(func(cause error) {
		e.Logger.Warn().Err(cause).Msg("Session expired, stored tokens were removed")
	})

	if e.Out == nil {
		e.Out = os.Stdout
	}
	if e.Err == nil {
		e.Err = os.Stderr
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Select == nil {
		e.Select = picker.Prompt
	}
	if e.ReadPassword == nil {
		e.ReadPassword = readPasswordFromTerminal
	}
}

// requireUser restores the session and returns the signed-in user
func (e *Env) requireUser(ctx context.Context) (*library.User, error) {
	if err := e.Session.LoadSession(ctx); err != nil {
		e.Logger.Debug().Err(err).Msg("Session restore failed")
	}

	user := e.Session.User()
	if user == nil {
		return nil, ErrNotLoggedIn
	}
	return user, nil
}

// requireStaff is requireUser for staff-only commands
func (e *Env) requireStaff(ctx context.Context) (*library.User, error) {
	user, err := e.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.Staff() {
		return nil, ErrStaffOnly
	}
	return user, nil
}

func (e *Env) table() *tabwriter.Writer {
	return tabwriter.NewWriter(e.Out, 0, 0, 2, ' ', 0)
}

func parseID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, arg)
	}
	return id, nil
}

func readPasswordFromTerminal(prompt string) (string, error) {
	// Check if stdin is a terminal (not piped)
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or SHELF_PASSWORD env var)")
	}

	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
