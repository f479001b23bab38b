package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/halld-offline/conddb"
	"github.com/halld-offline/conddb/internal/rcdb"
)

// version is set at build time via -ldflags.
var version = "dev"

const usage = `usage: conddb <command> [args]

commands:
  fetch <request>              fetch a constants table ("/path:run:variation:time")
  select <alias> <period>      list runs in a period matching a registered alias
  conditions <run> <name...>   print condition values for one run
  aliases                      list registered predicate aliases
  periods                      list named run periods
`

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("CONDDB_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}
	cmd, args := args[0], args[1:]

	// periods needs no store connection.
	if cmd == "periods" {
		return printPeriods()
	}

	client, err := conddb.Open(ctx, conddb.WithLogger(logger), conddb.WithVersion(version))
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(context.Background()) }()

	switch cmd {
	case "fetch":
		if len(args) != 1 {
			return fmt.Errorf("fetch: want exactly one request argument")
		}
		return fetchTable(ctx, client, args[0])
	case "select":
		if len(args) != 2 {
			return fmt.Errorf("select: want <alias> <period>")
		}
		return selectRuns(ctx, client, args[0], args[1])
	case "conditions":
		if len(args) < 2 {
			return fmt.Errorf("conditions: want <run> <name...>")
		}
		return printConditions(ctx, client, args[0], args[1:])
	case "aliases":
		return printAliases(client)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func fetchTable(ctx context.Context, client *conddb.Client, request string) error {
	table, err := client.Fetch(ctx, request)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, col := range table.Schema().Columns {
		fmt.Fprintf(w, "%s(%s)\t", col.Name, col.Type)
	}
	fmt.Fprintln(w)
	for row := range table.Rows() {
		for _, col := range table.Schema().Columns {
			v, err := row.Value(col.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t", v)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func selectRuns(ctx context.Context, client *conddb.Client, alias, periodName string) error {
	period, err := client.Period(periodName)
	if err != nil {
		return err
	}
	sel, err := client.SelectAlias(ctx, alias, period, nil)
	if err != nil {
		return err
	}
	for _, run := range sel.Runs {
		fmt.Println(run)
	}
	for _, d := range sel.Diagnostics {
		fmt.Fprintf(os.Stderr, "run %d excluded: %v\n", d.Run, d.Err)
	}
	return nil
}

func printConditions(ctx context.Context, client *conddb.Client, runArg string, names []string) error {
	run, err := strconv.ParseUint(runArg, 10, 32)
	if err != nil {
		return fmt.Errorf("bad run number %q", runArg)
	}
	values, err := client.Conditions(ctx, conddb.RunNumber(run), names...)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, name := range names {
		if v, ok := values[name]; ok {
			fmt.Fprintf(w, "%s\t%s\n", name, v)
		} else {
			fmt.Fprintf(w, "%s\t<no value>\n", name)
		}
	}
	return w.Flush()
}

func printAliases(client *conddb.Client) error {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, a := range client.Registry().Aliases() {
		fmt.Fprintf(w, "%s\t%s\n", a.Name, a.Expr)
	}
	return w.Flush()
}

func printPeriods() error {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, p := range rcdb.Periods() {
		fmt.Fprintf(w, "%s\t%d\t%d\n", p.Name, p.Min, p.Max)
	}
	return w.Flush()
}
