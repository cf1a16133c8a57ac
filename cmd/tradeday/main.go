package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"tradeday/internal/calendar"
	"tradeday/internal/config"
	"tradeday/internal/domain"
	"tradeday/internal/store"
	"tradeday/internal/util"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tradeday <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                      Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  open [date]                  Report whether date (default today) is a trading day\n")
		fmt.Fprintf(os.Stderr, "  nearest [-forward] <date>    Find the nearest trading day on or around date\n")
		fmt.Fprintf(os.Stderr, "  range <from> <to>            List trading days in [from, to]\n")
		fmt.Fprintf(os.Stderr, "  month [YYYY-MM]              Show a month grid of trading days\n")
		fmt.Fprintf(os.Stderr, "  convert [options]            Copy an exception list between store kinds\n")
		fmt.Fprintf(os.Stderr, "  stats                        Show exception-list load statistics\n")
		fmt.Fprintf(os.Stderr, "\nThe configuration file is read from $TRADEDAY_CONFIG (default config/tradeday.yaml).\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("tradeday %s\n", version)
	case "open":
		err = runOpen(ctx, args)
	case "nearest":
		err = runNearest(ctx, args)
	case "range":
		err = runRange(ctx, args)
	case "month":
		err = runMonth(ctx, args)
	case "convert":
		err = runConvert(ctx, args)
	case "stats":
		err = runStats(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func runOpen(ctx context.Context, args []string) error {
	cal, err := loadCalendar(ctx)
	if err != nil {
		return err
	}

	d := cal.DateOf(time.Now())
	if len(args) > 0 {
		if d, err = domain.ParseDate(args[0]); err != nil {
			return err
		}
	}

	state := "closed"
	if cal.IsOpen(d) {
		state = "open"
	}
	fmt.Printf("%s %s %s\n", d, d.Weekday(), state)
	return nil
}

func runNearest(ctx context.Context, args []string) error {
	start, dir, err := parseNearestArgs(args)
	if err != nil {
		return err
	}
	cal, err := loadCalendar(ctx)
	if err != nil {
		return err
	}

	found, err := cal.NearestOpen(start, dir)
	if err != nil {
		return err
	}
	fmt.Println(found)
	return nil
}

// parseNearestArgs parses "[-forward] <date>". Flags must come before the
// date; anything after it is rejected rather than silently ignored.
func parseNearestArgs(args []string) (domain.Date, calendar.Direction, error) {
	const usage = "usage: tradeday nearest [-forward] <date>"

	fs := flag.NewFlagSet("nearest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	forward := fs.Bool("forward", false, "search forward in time instead of backward")
	if err := fs.Parse(args); err != nil {
		return domain.Date{}, calendar.Backward, fmt.Errorf("%v; %s", err, usage)
	}
	if fs.NArg() != 1 {
		return domain.Date{}, calendar.Backward, errors.New(usage)
	}

	start, err := domain.ParseDate(fs.Arg(0))
	if err != nil {
		return domain.Date{}, calendar.Backward, err
	}
	dir := calendar.Backward
	if *forward {
		dir = calendar.Forward
	}
	return start, dir, nil
}

func runRange(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: tradeday range <from> <to>")
	}
	from, err := domain.ParseDate(args[0])
	if err != nil {
		return err
	}
	to, err := domain.ParseDate(args[1])
	if err != nil {
		return err
	}
	cal, err := loadCalendar(ctx)
	if err != nil {
		return err
	}

	days := cal.OpenDaysBetween(from, to)
	for _, d := range days {
		fmt.Println(d)
	}
	fmt.Fprintf(os.Stderr, "%d trading days\n", len(days))
	return nil
}

func runConvert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	fromKind := fs.String("from-kind", store.KindCSV, "source store kind")
	fromPath := fs.String("from", "", "source path (unused for alpaca)")
	toKind := fs.String("to-kind", store.KindParquet, "destination store kind")
	toPath := fs.String("to", "", "destination path")
	fs.Parse(args)
	if *toPath == "" {
		return errors.New("-to is required")
	}

	opts := store.Options{Log: newLogger()}
	if cfg, err := config.Load(configPath()); err == nil {
		opts = cfg.StoreOptions()
		opts.Log = newLogger()
	}

	src, err := store.Open(*fromKind, *fromPath, opts)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := store.Open(*toKind, *toPath, opts)
	if err != nil {
		return err
	}
	defer dst.Close()
	if dst.Writer == nil {
		return fmt.Errorf("store kind %q is read-only", *toKind)
	}

	records, err := src.Reader.ReadExceptions(ctx)
	if err != nil {
		return err
	}
	// Write the canonical form so headers and malformed rows are dropped.
	ec, st := calendar.NewExceptionCalendar(records)
	if err := dst.Writer.WriteExceptions(ctx, ec.Records()); err != nil {
		return err
	}
	fmt.Printf("wrote %d records to %s (%d skipped)\n", st.Closed+st.Open, *toPath, st.Skipped)
	return nil
}

func runStats(ctx context.Context, _ []string) error {
	cal, err := loadCalendar(ctx)
	if err != nil {
		return err
	}
	out := map[string]any{
		"market":   cal.Market(),
		"location": cal.Location().String(),
		"stats":    cal.Exceptions().Stats(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func configPath() string {
	if p := os.Getenv("TRADEDAY_CONFIG"); p != "" {
		return p
	}
	return "config/tradeday.yaml"
}

func newLogger() *slog.Logger {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return util.NewLoggerTo(os.Stderr, level, "text")
}

// loadCalendar builds the calendar described by the configuration file.
func loadCalendar(ctx context.Context) (*calendar.TradingCalendar, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	src := cfg.Calendar.Source
	opts := cfg.StoreOptions()
	opts.Log = logger
	h, err := store.Open(src.Kind, src.Path, opts)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	exceptions, err := calendar.LoadExceptions(ctx, h.Reader, logger)
	if err != nil {
		return nil, err
	}

	loc, _ := cfg.Location()
	calOpts := []calendar.Option{calendar.WithLocation(loc)}
	if cfg.Calendar.MaxSearchDays > 0 {
		calOpts = append(calOpts, calendar.WithMaxSearchDays(cfg.Calendar.MaxSearchDays))
	}
	return calendar.NewTradingCalendar(cfg.Market(), exceptions, calOpts...), nil
}
