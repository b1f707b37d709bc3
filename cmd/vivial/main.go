// vivial is a command line client for the Vivial Connect SMS API.
//
// Credentials come from a profile in ~/.vivialconnect/config.yaml (or the
// file named by --config / VIVIAL_CONNECT_CONFIG), overridden by the
// VIVIAL_CONNECT_* environment variables. Run "vivial configure" to create a
// profile interactively.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	vivialconnect "github.com/tj-smith47/vivialconnect-go"
	"github.com/tj-smith47/vivialconnect-go/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the flags accepted before the command name.
type globals struct {
	configPath string
	profile    string
	baseURL    string
	dump       bool
	verbose    bool
}

// env is what every command runs with.
type env struct {
	globals
	stdin  io.Reader
	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"configure", "create or update a credential profile", runConfigure},
	{"send", "send a message", runSend},
	{"messages", "list messages", runMessages},
	{"numbers", "list associated numbers", runNumbers},
	{"available", "search numbers available for purchase", runAvailable},
	{"buy", "buy an available number", runBuy},
	{"count", "count resources of a kind", runCount},
	{"lookup", "look up carrier information for a number", runLookup},
	{"logs", "list account logs", runLogs},
	{"status", "show the account billing status", runStatus},
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr}

	flagSet := pflag.NewFlagSet("vivial", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&e.configPath, "config", "", "config file (default ~/.vivialconnect/config.yaml)")
	flagSet.StringVarP(&e.profile, "profile", "p", "", "profile name (default: the file's default)")
	flagSet.StringVar(&e.baseURL, "base-url", "", "override the API base URL")
	flagSet.BoolVar(&e.dump, "dump", false, "dump the decoded resources instead of a summary")
	flagSet.BoolVarP(&e.verbose, "verbose", "v", false, "log every API request to stderr")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return pflag.ErrHelp
	}

	if e.verbose {
		e.logger = newLogger(stderr)
	}

	for _, cmd := range commands {
		if cmd.name == rest[0] {
			return cmd.run(ctx, e, rest[1:])
		}
	}
	return fmt.Errorf("unknown command %q (run vivial --help)", rest[0])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: vivial [flags] <command> [command flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}

// newLogger writes text records to a terminal and JSON records otherwise.
func newLogger(w io.Writer) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelDebug}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// client resolves the profile and builds an API client from it.
func (e *env) client() (*vivialconnect.Client, error) {
	p, err := config.Resolve(e.configPath, e.profile)
	if err != nil {
		return nil, err
	}
	if e.baseURL != "" {
		p.BaseURL = e.baseURL
	}
	var opts []vivialconnect.Option
	if e.logger != nil {
		opts = append(opts, vivialconnect.WithLogger(e.logger))
	}
	opts = append(opts, vivialconnect.WithUserAgentExtra("tool", "vivial-cli"))
	return p.NewClient(opts...)
}

// show prints a resource either as a one-line summary or, with --dump, as a
// full structure dump.
func (e *env) show(r vivialconnect.Entity, summary string) {
	if e.dump {
		spew.Fdump(e.stdout, r.Base().ToMap())
		return
	}
	fmt.Fprintln(e.stdout, summary)
}

func (e *env) dumpValue(v any) bool {
	if !e.dump {
		return false
	}
	spew.Fdump(e.stdout, v)
	return true
}

// printMap prints a flat map as sorted key: value lines.
func printMap(w io.Writer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %v\n", k, m[k])
	}
}

func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("vivial "+name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// readSecret reads a secret without echo when stdin is a terminal, or a line
// from stdin otherwise.
func readSecret(e *env, prompt string) (string, error) {
	if f, ok := e.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(e.stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(e.stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(e, prompt)
}
