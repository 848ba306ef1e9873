// Command ocrflowd runs the recognition service: an HTTP API that accepts
// image submissions, drives them through the recognition pipeline on a
// priority worker pool, and streams progress to subscribers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/danwin47-sys/ocrflow/cache"
	"github.com/danwin47-sys/ocrflow/correct"
	"github.com/danwin47-sys/ocrflow/metrics"
	"github.com/danwin47-sys/ocrflow/observability"
	"github.com/danwin47-sys/ocrflow/ocr"
	"github.com/danwin47-sys/ocrflow/ocr/tesseract"
	"github.com/danwin47-sys/ocrflow/pipeline"
	"github.com/danwin47-sys/ocrflow/preprocess"
	"github.com/danwin47-sys/ocrflow/ratelimit"
	"github.com/danwin47-sys/ocrflow/server"
	"github.com/danwin47-sys/ocrflow/textproc"
)

type options struct {
	addr    string
	workers int
	debug   bool

	cacheDir string
	cacheMax int

	rateLimit  int
	rateWindow time.Duration
	redisAddr  string

	globalRate int
	maxBodyMB  int
	maxConns   int
	maxDim     int

	engine    string
	engineURL string

	correctURL   string
	correctModel string
	correctKey   string

	script   string
	glossary string
	spacing  bool
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "ocrflowd: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.addr, "addr", envOr("OCRFLOW_ADDR", ":8080"), "listen address")
	flag.IntVar(&opts.workers, "workers", envInt("OCRFLOW_WORKERS", 4), "recognition worker count")
	flag.BoolVar(&opts.debug, "debug", envBool("OCRFLOW_DEBUG", false), "debug logging")

	flag.StringVar(&opts.cacheDir, "cache-dir", envOr("OCRFLOW_CACHE_DIR", ""), "result cache directory, empty keeps the cache memory-only")
	flag.IntVar(&opts.cacheMax, "cache-max", envInt("OCRFLOW_CACHE_MAX", cache.DefaultMaxEntries), "in-memory cache entry cap")

	flag.IntVar(&opts.rateLimit, "rate-limit", envInt("OCRFLOW_RATE_LIMIT", ratelimit.DefaultLimit), "submissions per client per window")
	flag.DurationVar(&opts.rateWindow, "rate-window", envDuration("OCRFLOW_RATE_WINDOW", ratelimit.DefaultWindow), "per-client rate window")
	flag.StringVar(&opts.redisAddr, "redis", envOr("OCRFLOW_REDIS_ADDR", ""), "redis address for shared rate limiting, empty keeps limiting in-process")

	flag.IntVar(&opts.globalRate, "global-rate", envInt("OCRFLOW_GLOBAL_RATE", 0), "total submissions per second across all clients, 0 disables")
	flag.IntVar(&opts.maxBodyMB, "max-body-mb", envInt("OCRFLOW_MAX_BODY_MB", 20), "submission body cap in MiB")
	flag.IntVar(&opts.maxConns, "max-conns", envInt("OCRFLOW_MAX_CONNS", 256), "concurrent connection cap, 0 disables")
	flag.IntVar(&opts.maxDim, "max-dim", envInt("OCRFLOW_MAX_DIM", preprocess.DefaultMaxDimension), "longest image side before downscaling")

	flag.StringVar(&opts.engine, "engine", envOr("OCRFLOW_ENGINE", "tesseract"), "recognition engine: tesseract|http|nop")
	flag.StringVar(&opts.engineURL, "engine-url", envOr("OCRFLOW_ENGINE_URL", ""), "recognition service base URL for -engine=http")

	flag.StringVar(&opts.correctURL, "correct-url", envOr("OCRFLOW_CORRECT_URL", ""), "OpenAI-compatible base URL for text correction, empty disables")
	flag.StringVar(&opts.correctModel, "correct-model", envOr("OCRFLOW_CORRECT_MODEL", "qwen2.5:7b"), "correction model name")
	flag.StringVar(&opts.correctKey, "correct-key", envOr("OCRFLOW_CORRECT_KEY", ""), "correction API key")

	flag.StringVar(&opts.script, "script", envOr("OCRFLOW_SCRIPT", ""), "JavaScript transform file, must define transform(text)")
	flag.StringVar(&opts.glossary, "glossary", envOr("OCRFLOW_GLOSSARY", ""), "glossary file, one from=to rule per line")
	flag.BoolVar(&opts.spacing, "spacing", envBool("OCRFLOW_SPACING", true), "space CJK/Latin boundaries in recognized text")
	flag.Parse()
	return opts
}

func run(opts options) error {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log := observability.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	engine, err := buildEngine(opts)
	if err != nil {
		return err
	}
	resultCache, err := cache.New(cache.Options{
		Dir:        opts.cacheDir,
		MaxEntries: opts.cacheMax,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	transformers, err := buildTransformers(opts)
	if err != nil {
		return err
	}
	var corrector correct.Corrector
	if opts.correctURL != "" {
		corrector = correct.NewHTTPCorrector(correct.Config{
			BaseURL: opts.correctURL,
			Model:   opts.correctModel,
			APIKey:  opts.correctKey,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var limiter ratelimit.Limiter
	var sweeper *ratelimit.SlidingWindow
	if opts.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limiter = ratelimit.NewRedisSlidingWindow(rdb, opts.rateLimit, opts.rateWindow, "", log)
	} else {
		sweeper = ratelimit.NewSlidingWindow(opts.rateLimit, opts.rateWindow)
		limiter = sweeper
	}

	p := pipeline.New(pipeline.Options{
		Cache:        resultCache,
		Engine:       engine,
		Corrector:    corrector,
		Transformers: transformers,
		MaxImageDim:  opts.maxDim,
		Logger:       log,
	})
	p.Queue().Start(ctx, opts.workers)

	srv := server.New(server.Options{
		Pipeline:     p,
		Limiter:      limiter,
		GlobalRate:   rate.Limit(opts.globalRate),
		MaxBodyBytes: int64(opts.maxBodyMB) << 20,
		Logger:       log,
	})

	go pollStats(ctx, p, sweeper, opts.rateWindow)

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if opts.maxConns > 0 {
		ln = netutil.LimitListener(ln, opts.maxConns)
	}

	httpSrv := &http.Server{Handler: srv.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()
	log.Info("listening",
		observability.String("addr", ln.Addr().String()),
		observability.String("engine", engine.Name()),
		observability.Int("workers", opts.workers))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", observability.Error("err", err))
	}
	p.Queue().Stop()
	return nil
}

func buildEngine(opts options) (ocr.Engine, error) {
	switch opts.engine {
	case "tesseract":
		return tesseract.NewEngine(), nil
	case "http":
		if opts.engineURL == "" {
			return nil, fmt.Errorf("-engine=http requires -engine-url")
		}
		return ocr.NewHTTPEngine(opts.engineURL), nil
	case "nop":
		return ocr.NewNopEngine(), nil
	}
	return nil, fmt.Errorf("unknown engine %q, want tesseract|http|nop", opts.engine)
}

// buildTransformers assembles the post-recognition text passes in their fixed
// order: spacing, then glossary, then the user script.
func buildTransformers(opts options) ([]textproc.Transformer, error) {
	var transformers []textproc.Transformer
	if opts.spacing {
		transformers = append(transformers, textproc.Spacing{})
	}
	if opts.glossary != "" {
		f, err := os.Open(opts.glossary)
		if err != nil {
			return nil, fmt.Errorf("open glossary: %w", err)
		}
		rules, err := textproc.ParseGlossary(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse glossary: %w", err)
		}
		transformers = append(transformers, textproc.NewGlossary(rules))
	}
	if opts.script != "" {
		src, err := os.ReadFile(opts.script)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		s, err := textproc.NewScript(string(src))
		if err != nil {
			return nil, fmt.Errorf("compile script: %w", err)
		}
		transformers = append(transformers, s)
	}
	return transformers, nil
}

// pollStats keeps the queue gauges fresh and, when limiting is in-process,
// sweeps idle clients out of the limiter.
func pollStats(ctx context.Context, p *pipeline.Pipeline, sweeper *ratelimit.SlidingWindow, window time.Duration) {
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	gauges := time.NewTicker(5 * time.Second)
	defer gauges.Stop()
	sweep := time.NewTicker(window)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gauges.C:
			st := p.Queue().Status()
			metrics.QueueDepth.Set(float64(st.QueueSize))
			metrics.ActiveWorkers.Set(float64(st.Active))
		case <-sweep.C:
			if sweeper != nil {
				sweeper.Sweep()
			}
		}
	}
}

// env helpers
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
