package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-ledger/internal/auth"
	"github.com/zombor/receipt-ledger/internal/ledger"
	"github.com/zombor/receipt-ledger/internal/remote"
)

// app carries the global flags and I/O shared by every subcommand
type app struct {
	server   string
	user     string
	password string
	timeout  time.Duration

	in  io.Reader
	out io.Writer
	now func() time.Time

	// invoker is built from the flags unless a test supplies one
	invoker remote.Invoker
}

func (a *app) client() (*ledger.Client, error) {
	if a.user == "" {
		return nil, errors.New("--user is required")
	}
	if a.invoker == nil {
		session := auth.NewSession(remote.NewTokenClient(a.server, a.user, a.password, a.timeout))
		a.invoker = remote.NewHTTPInvoker(a.server, session, a.timeout)
	}
	return ledger.New(a.invoker), nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func newRootCommand(a *app) *ff.Command {
	fs := ff.NewFlagSet("receipts")
	fs.StringVar(&a.server, 0, "server", "http://localhost:8080", "receipt-ledger server URL")
	fs.StringVar(&a.user, 0, "user", "", "user name")
	fs.StringVar(&a.password, 0, "password", "", "password")
	fs.DurationVar(&a.timeout, 0, "timeout", 60*time.Second, "per-request timeout")

	root := &ff.Command{
		Name:      "receipts",
		Usage:     "receipts [FLAGS] <SUBCOMMAND>",
		ShortHelp: "track expenses from receipt photos",
		Flags:     fs,
	}
	root.Subcommands = []*ff.Command{
		ingestCommand(a, fs),
		addCommand(a, fs),
		listCommand(a, fs),
		updateCommand(a, fs),
		deleteCommand(a, fs),
		linkCommand(a, fs),
		calendarCommand(a, fs),
		weeklyCommand(a, fs),
		categoriesCommand(a, fs),
		exportCommand(a, fs),
		prefsCommand(a, fs),
	}
	return root
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not load .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{in: os.Stdin, out: os.Stdout, now: time.Now}
	root := newRootCommand(a)

	err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS"))
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
