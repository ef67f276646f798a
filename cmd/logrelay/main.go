package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/szibis/logrelay/internal/config"
	"github.com/szibis/logrelay/internal/executor"
	"github.com/szibis/logrelay/internal/health"
	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/pebblelog"
	"github.com/szibis/logrelay/internal/queue"
	"github.com/szibis/logrelay/internal/record"
	"github.com/szibis/logrelay/internal/relay"
	"github.com/szibis/logrelay/internal/telemetry"
	"github.com/szibis/logrelay/internal/wal"
	"github.com/szibis/logrelay/internal/watermark"
)

// logStore is what both store backends provide.
type logStore interface {
	relay.Store
	FirstSeq() uint64
	Sync() error
	Close() error
}

func main() {
	cfg := config.ParseFlags()
	if exit, code := config.HandleEarlyExits(cfg); exit {
		os.Exit(code)
	}

	// Stdout may carry relayed records.
	logging.SetOutput(os.Stderr)
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.Profile != "" {
		config.LogProfileInfo(config.ProfileName(cfg.Profile), func(msg string, fields map[string]interface{}) {
			logging.Info(msg, fields)
		})
	}
	applyMemoryLimit(cfg.MemoryLimitRatio)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal("logrelay failed", logging.F("error", err.Error()))
	}
}

func applyMemoryLimit(ratio float64) {
	if ratio <= 0 {
		return
	}
	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(ratio),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		logging.Warn("memory limit not set", logging.F("error", err.Error()))
		return
	}
	logging.Info("memory limit set", logging.F("limit_bytes", limit, "ratio", ratio))
}

// run relays the configured input until it is exhausted and delivered, the
// output fails, or ctx ends.
func run(ctx context.Context, cfg *config.Config) error {
	// Telemetry starts once the start position is known; it shuts down last.
	var tel *telemetry.Telemetry
	defer func() {
		if !tel.Enabled() {
			return
		}
		shCtx, cancel := context.WithTimeout(context.Background(), tel.ShutdownTimeout())
		defer cancel()
		logging.SetHook(nil)
		_ = tel.Shutdown(shCtx)
	}()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("closing log store", logging.F("error", err.Error()))
		}
	}()

	source, mark, closeMark, err := newWatermark(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeMark()

	sizer, err := newSizer(cfg.QueueSizer)
	if err != nil {
		return err
	}
	start, err := cfg.ResolveStart(store.FirstSeq(), store.LastSeq())
	if err != nil {
		return err
	}

	tel, err = telemetry.Init(ctx, cfg.TelemetryConfig(), telemetry.Service{
		Name:      "logrelay",
		Version:   config.GetVersion(),
		Queue:     cfg.QueueName,
		Store:     cfg.StoreType,
		Watermark: cfg.WatermarkSource,
		StartSeq:  start,
	})
	if err != nil {
		logging.Warn("telemetry disabled", logging.F("error", err.Error()))
	}
	if tel.Enabled() {
		logging.SetHook(tel.NewLogHook())
		logging.SetResource(map[string]string{"service.instance.id": tel.InstanceID()})
	}

	pool := executor.New(cfg.ExecutorConfig())
	q, err := queue.New[record.Record](cfg.QueueConfig(start), store, sizer, watermark.New(cfg.QueueName, source), pool)
	if err != nil {
		_ = pool.Shutdown(context.Background())
		return err
	}
	defer func() {
		// Stop catch-up before the store closes underneath it.
		q.Close()
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := pool.Shutdown(shCtx); err != nil {
			logging.Warn("executor shutdown", logging.F("error", err.Error()))
		}
	}()

	in, err := openInput(cfg.InputPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := openOutput(cfg.OutputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	r, err := relay.New(cfg.RelayConfig(), store, q, mark, relay.NewWriterSink(out))
	if err != nil {
		return err
	}

	unobserve, err := tel.ObserveQueue(func() telemetry.QueueState {
		return telemetry.QueueState{
			QueuedSize:   q.QueuedSize(),
			Length:       q.Len(),
			Faulted:      q.IsFaultedToLog(),
			Reading:      q.IsReadingFromLog(),
			DeliveredSeq: r.Delivered(),
			StoreLastSeq: store.LastSeq(),
		}
	})
	if err != nil {
		logging.Warn("queue gauges not exported", logging.F("error", err.Error()))
	} else {
		defer func() { _ = unobserve() }()
	}

	checker := health.New()
	checker.RegisterReadiness("queue", func() error {
		if err := r.Ready(); err != nil {
			return err
		}
		if q.IsFaultedToLog() {
			return health.Degradedf("catching up from the log store at %d", r.Delivered())
		}
		return nil
	})
	checker.RegisterReadiness("watermark", func() error {
		if _, err := source.HighWater(); err != nil {
			return health.Degradedf("high-water mark unavailable: %v", err)
		}
		return nil
	})

	logging.Info("logrelay started", logging.F(
		"store", cfg.StoreType,
		"path", cfg.StorePath,
		"first_seq", store.FirstSeq(),
		"last_seq", store.LastSeq(),
		"start_seq", start,
		"watermark", cfg.WatermarkSource,
		"listen", cfg.ListenAddr,
	))

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancelRun()
		return r.Run(gctx)
	})
	if cfg.ListenAddr != "" {
		g.Go(func() error { return serve(gctx, cfg, checker) })
	}

	// A blocked read cannot be interrupted, so input is not part of the group.
	inputErr := make(chan error, 1)
	go func() {
		n, err := r.Ingest(gctx, in)
		if err != nil {
			if gctx.Err() == nil {
				inputErr <- fmt.Errorf("input after %d lines: %w", n, err)
				cancelRun()
			}
			return
		}
		logging.Info("input finished", logging.F("lines", n))
		if err := r.WaitDelivered(gctx, store.LastSeq()); err == nil {
			logging.Info("all records delivered", logging.F("seq", r.Delivered()))
			cancelRun()
		}
	}()

	err = g.Wait()
	if err == nil {
		select {
		case err = <-inputErr:
		default:
		}
	}
	checker.SetShuttingDown()
	if syncErr := store.Sync(); syncErr != nil {
		logging.Warn("final log store sync", logging.F("error", syncErr.Error()))
	}
	logging.Info("shutting down", logging.F("delivered_seq", r.Delivered()))
	return err
}

func openStore(cfg *config.Config) (logStore, error) {
	switch cfg.StoreType {
	case config.StorePebble:
		s, err := pebblelog.Open(cfg.PebbleConfig())
		if err != nil {
			return nil, fmt.Errorf("opening pebble store: %w", err)
		}
		return s, nil
	default:
		w, err := wal.Open(cfg.WALConfig())
		if err != nil {
			return nil, fmt.Errorf("opening wal: %w", err)
		}
		return w, nil
	}
}

// newWatermark returns the high-water source the queue consults, the
// advancer the relay moves on append (nil when the store is the source) and
// a release function.
func newWatermark(ctx context.Context, cfg *config.Config, store logStore) (watermark.Source, watermark.Advancer, func(), error) {
	switch cfg.WatermarkSource {
	case config.WatermarkLog:
		return watermark.LogStore(store), nil, func() {}, nil
	case config.WatermarkRedis:
		client := redis.NewClient(cfg.RedisOptions())
		rw, err := watermark.NewRedis(ctx, client, watermark.RedisConfig{
			Key:          cfg.RedisKey,
			PollInterval: cfg.RedisPollInterval,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		// History already in the store is part of the stream.
		if err := rw.Advance(ctx, store.LastSeq()); err != nil {
			logging.Warn("seeding redis watermark", logging.F("error", err.Error()))
		}
		release := func() {
			_ = rw.Close()
			_ = client.Close()
		}
		return rw, rw, release, nil
	default:
		a := watermark.NewAtomic(store.LastSeq())
		return a, a, func() {}, nil
	}
}

func newSizer(kind string) (queue.Sizer[record.Record], error) {
	switch kind {
	case "", "count":
		return queue.CountSizer[record.Record]{}, nil
	case "bytes":
		return record.BytesSizer{}, nil
	case "encoded":
		return record.EncodedSizer{}, nil
	case "range":
		return queue.RangeSizer[record.Record]{}, nil
	default:
		return nil, fmt.Errorf("unknown queue sizer %q", kind)
	}
}

func serve(ctx context.Context, cfg *config.Config, checker *health.Checker) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	checker.Register(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Info("http endpoint started", logging.F("addr", cfg.ListenAddr, "paths", "/metrics,/live,/ready"))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shCtx)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	return f, nil
}
