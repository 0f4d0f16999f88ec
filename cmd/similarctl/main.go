// Package main is the batch command line for the similarity service:
// migrations, edge materialization, weight calibration and ad hoc lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// command is one similarctl subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"migrate", "apply SQL migrations", runMigrate},
	{"materialize", "recompute the top-K similarity edges of every item", runMaterialize},
	{"calibrate", "search weights that maximize MRR on the golden set", runCalibrate},
	{"find", "rank the catalog against one title", runFind},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "SimilarHub batch commands")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: similarctl [-config file] <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.summary)
	}
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()

	if flag.NArg() == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, *configPath, flag.Args(), os.Stdout); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// dispatch runs the subcommand named by args[0].
func dispatch(ctx context.Context, configPath string, args []string, out io.Writer) error {
	name := args[0]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		e, err := newEnv(ctx, configPath, out)
		if err != nil {
			return err
		}
		defer e.Close()
		return c.run(ctx, e, args[1:])
	}
	usage(out)
	return fmt.Errorf("unknown command %q", name)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

