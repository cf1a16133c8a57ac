package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tradeday/internal/api"
	"tradeday/internal/calendar"
	"tradeday/internal/config"
	"tradeday/internal/metrics"
	"tradeday/internal/store"
	"tradeday/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/tradeday.yaml"
	if p := os.Getenv("TRADEDAY_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Setup logging.
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	metrics.Init(nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load the exception list; a source that cannot be read is fatal.
	src := cfg.Calendar.Source
	opts := cfg.StoreOptions()
	opts.Log = logger
	h, err := store.Open(src.Kind, src.Path, opts)
	if err != nil {
		log.Fatalf("opening %s source: %v", src.Kind, err)
	}
	exceptions, err := calendar.LoadExceptions(ctx, h.Reader, logger)
	metrics.ObserveLoad(src.Kind, err)
	h.Close()
	if err != nil {
		log.Fatalf("loading exceptions: %v", err)
	}

	market := cfg.Market()
	st := exceptions.Stats()
	metrics.SetExceptions(string(market), st.Closed, st.Open, st.Skipped, st.Conflicts)

	loc, _ := cfg.Location()
	calOpts := []calendar.Option{calendar.WithLocation(loc)}
	if cfg.Calendar.MaxSearchDays > 0 {
		calOpts = append(calOpts, calendar.WithMaxSearchDays(cfg.Calendar.MaxSearchDays))
	}
	cal := calendar.NewTradingCalendar(market, exceptions, calOpts...)

	logger.Info("tradeday-server starting",
		"market", market,
		"location", loc.String(),
		"source", src.Kind,
		"http", cfg.HTTPAddr(),
		"grpc", cfg.GRPCAddr(),
	)

	srv := api.NewServer(cal, util.NewSystemClock(loc), cfg.HTTPAddr(), cfg.GRPCAddr(), logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("tradeday-server stopped")
}
