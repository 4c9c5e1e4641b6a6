// Command fsf-fetch looks up a batch of search items against the First
// Street Foundation API and prints one JSON result per line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/fsf-api-client/pkg/client"
	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
	"github.com/Sternrassler/fsf-api-client/pkg/logging"
	"github.com/Sternrassler/fsf-api-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "fsf-fetch: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed flags and environment.
type options struct {
	apiKey       string
	baseURL      string
	version      string
	redisURL     string
	logLevel     string
	pretty       bool
	metricsAddr  string
	product      string
	location     string
	keys         string
	file         string
	extra        string
	year         int
	returnPeriod int
	eventID      int64

	connectionLimit int
	rateLimit       int
	ratePeriod      time.Duration
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	env := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	defaults := client.DefaultConfig("")
	var o options

	fs := flag.NewFlagSet("fsf-fetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.apiKey, "api-key", env("FSF_API_KEY", ""), "API key (env FSF_API_KEY)")
	fs.StringVar(&o.baseURL, "base-url", env("FSF_BASE_URL", defaults.BaseURL), "API host (env FSF_BASE_URL)")
	fs.StringVar(&o.version, "version", env("FSF_VERSION", defaults.Version), "API version (env FSF_VERSION)")
	fs.StringVar(&o.redisURL, "redis", env("REDIS_URL", ""), "Redis address or redis:// URL for rate limit info (env REDIS_URL)")
	fs.StringVar(&o.logLevel, "log-level", env("LOG_LEVEL", string(logging.LevelInfo)), "debug, info, warn, error or disabled (env LOG_LEVEL)")
	fs.BoolVar(&o.pretty, "pretty", false, "human-readable logs")
	fs.StringVar(&o.metricsAddr, "metrics-addr", env("METRICS_ADDR", ""), "serve /metrics on this address while running (env METRICS_ADDR)")
	fs.StringVar(&o.product, "product", "", "product name, e.g. location.get_detail")
	fs.StringVar(&o.location, "location", "", "location type for products that need one")
	fs.StringVar(&o.keys, "search-items", "", "search items separated by ';'")
	fs.StringVar(&o.file, "file", "", "file with one search item per line ('-' for stdin)")
	fs.StringVar(&o.extra, "extra-param", "", "extra query parameters, e.g. 'depths:[30,60];year:2050'")
	fs.IntVar(&o.year, "year", 0, "probability depth tile year")
	fs.IntVar(&o.returnPeriod, "return-period", 0, "probability depth tile return period")
	fs.Int64Var(&o.eventID, "event-id", 0, "historic event tile event id")
	fs.IntVar(&o.connectionLimit, "connection-limit", defaults.ConnectionLimit, "max requests in flight")
	fs.IntVar(&o.rateLimit, "rate-limit", defaults.RateLimit, "max requests per rate period")
	fs.DurationVar(&o.ratePeriod, "rate-period", defaults.RatePeriod, "rate limit period")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if o.product == "" {
		return options{}, errors.New("-product is required")
	}
	if o.keys == "" && o.file == "" {
		return options{}, errors.New("one of -search-items or -file is required")
	}

	return o, nil
}

// buildProduct resolves the catalog entry and applies tile options and extra params.
func (o options) buildProduct() (endpoint.Product, error) {
	product, err := endpoint.Lookup(o.product, o.location)
	if err != nil {
		return endpoint.Product{}, err
	}

	if product.IsTile() {
		product.Tile.Year = o.year
		product.Tile.ReturnPeriod = o.returnPeriod
		product.Tile.EventID = o.eventID
	}

	if o.extra != "" {
		extra, err := endpoint.ParseExtraParams(o.extra)
		if err != nil {
			return endpoint.Product{}, err
		}
		product.Extra = extra
	}

	return product, nil
}

func (o options) readKeys(stdin io.Reader) ([]endpoint.Key, error) {
	keys := endpoint.ParseKeyList(o.keys)

	switch o.file {
	case "":
	case "-":
		fromStdin, err := endpoint.ReadKeys(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		keys = append(keys, fromStdin...)
	default:
		f, err := os.Open(o.file)
		if err != nil {
			return nil, fmt.Errorf("open search items: %w", err)
		}
		defer f.Close()

		fromFile, err := endpoint.ReadKeys(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", o.file, err)
		}
		keys = append(keys, fromFile...)
	}

	return keys, nil
}

func newRedis(ctx context.Context, addr string, logger zerolog.Logger) *redis.Client {
	if addr == "" {
		return nil
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			logger.Warn().Err(err).Str("redis", addr).Msg("Invalid Redis URL, continuing without Redis")
			return nil
		}
		opts = parsed
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("redis", opts.Addr).Msg("Redis unavailable, continuing without Redis")
		redisClient.Close()
		return nil
	}

	logger.Info().Str("redis", opts.Addr).Msg("Connected to Redis")
	return redisClient
}

func serveMetrics(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, getenv func(string) string) error {
	o, err := parseOptions(args, getenv)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{Level: level, Pretty: o.pretty, Output: os.Stderr})
	logger := logging.NewLogger("fsf-fetch")

	product, err := o.buildProduct()
	if err != nil {
		return err
	}

	keys, err := o.readKeys(stdin)
	if err != nil {
		return err
	}

	if o.metricsAddr != "" {
		srv := serveMetrics(o.metricsAddr, logger)
		defer srv.Shutdown(context.Background())
	}

	cfg := client.DefaultConfig(o.apiKey)
	cfg.BaseURL = o.baseURL
	cfg.Version = o.version
	cfg.ConnectionLimit = o.connectionLimit
	cfg.RateLimit = o.rateLimit
	cfg.RatePeriod = o.ratePeriod
	cfg.Redis = newRedis(ctx, o.redisURL, logger)
	if cfg.Redis != nil {
		defer cfg.Redis.Close()
	}

	fsf, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer fsf.Close()

	results, err := fsf.Dispatch(ctx, keys, product)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	valid := 0
	for _, r := range results {
		if r.Valid() {
			valid++
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	logger.Info().
		Str("product", product.Name()).
		Int("results", len(results)).
		Int("valid", valid).
		Msg("Done")

	return nil
}
