// Command vtcode is a terminal coding agent: a single-session CLI that
// routes each user turn through a provider, executes the tool calls it
// requests against the current workspace, and persists policy decisions
// and a trajectory log alongside the code it edits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, remaining, err := parseStartupOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitConfigError
	}
	if opts.showVersion {
		fmt.Printf("vtcode %s (%s)\n", version, commit)
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := "chat"
	if len(remaining) > 0 {
		sub = remaining[0]
		remaining = remaining[1:]
	}

	switch sub {
	case "chat":
		return dispatch(ctx, opts, runChat, remaining)
	case "ask":
		return dispatch(ctx, opts, runAsk, remaining)
	case "analyze":
		return dispatch(ctx, opts, runAnalyze, remaining)
	case "init":
		return runInit(opts, remaining)
	case "config":
		return runConfig(opts, remaining)
	case "trajectory":
		return runTrajectory(opts, remaining)
	default:
		fmt.Fprintf(os.Stderr, "error: unknown subcommand %q\n", sub)
		fmt.Fprintln(os.Stderr, "usage: vtcode [flags] {chat|ask|analyze|init|config|trajectory} ...")
		return exitConfigError
	}
}

// startupOptions is shared by every subcommand.
type startupOptions struct {
	workspace         string
	model             string
	apiKeyEnv         string
	verbose           bool
	skipConfirmations bool
	showVersion       bool
}

func parseStartupOptions(args []string) (startupOptions, []string, error) {
	fs := flag.NewFlagSet("vtcode", flag.ContinueOnError)
	var opts startupOptions
	fs.StringVar(&opts.workspace, "workspace", ".", "workspace root directory")
	fs.StringVar(&opts.model, "model", "", "override the default model")
	fs.StringVar(&opts.apiKeyEnv, "api-key-env", "", "environment variable holding the provider API key")
	fs.BoolVar(&opts.verbose, "verbose", false, "print tool calls and results to stderr")
	fs.BoolVar(&opts.skipConfirmations, "skip-confirmations", false, "auto-approve every tool call (use with care)")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

// dispatch builds a session and hands it to fn, translating errors to
// the right exit code; a context cancellation (Ctrl-C) always reports
// 130 regardless of what fn returns.
func dispatch(ctx context.Context, opts startupOptions, fn func(context.Context, *session, []string) error, args []string) int {
	sess, err := newSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeForError(err)
	}

	err = fn(ctx, sess, args)
	if ctx.Err() != nil {
		return exitInterrupted
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeForError(err)
	}
	return exitOK
}

// runChat reads one line of input at a time from stdin and runs it as a
// turn until EOF or interruption.
func runChat(ctx context.Context, sess *session, _ []string) error {
	fmt.Fprintln(os.Stderr, "vtcode chat - workspace:", sess.workspace)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sess.loop.RunTurn(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// runAsk executes exactly one turn from the remaining command-line
// arguments joined as the prompt, then exits.
func runAsk(ctx context.Context, sess *session, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: vtcode ask <prompt>")
	}
	return sess.loop.RunTurn(ctx, strings.Join(args, " "))
}

// runAnalyze runs a single fixed turn asking the model to summarize the
// workspace, reusing the same run-loop and tool surface as chat/ask.
func runAnalyze(ctx context.Context, sess *session, _ []string) error {
	const prompt = "Give a short overview of this workspace: its layout, main components, and anything that looks unfinished or risky. Use list_files and read_file as needed."
	return sess.loop.RunTurn(ctx, prompt)
}
