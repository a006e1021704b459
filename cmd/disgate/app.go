package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"disgate/internal/notify"
	"disgate/internal/rest"
	"disgate/internal/state"
	"disgate/internal/transport"
	"disgate/pkg/disgate"
)

const (
	envConfigFile           = "DISGATE_CONFIG_FILE"
	envToken                = "DISGATE_TOKEN"
	defaultConfigFilePath   = "config/disgate.json"
	alternateConfigFilePath = "bin/config/disgate.json"
	defaultShutdownTimeout  = 10 * time.Second
	defaultBusBuffer        = 256
	defaultBusWorkers       = 2
	defaultBusTimeout       = 3 * time.Second
)

type appConfig struct {
	logLevel slog.Level

	gatewayURL  string
	restBaseURL string
	token       string
	metricsAddr string

	shutdownTimeout time.Duration
	busBuffer       int
	busWorkers      int
	busTimeout      time.Duration

	engineOptions []state.Option
}

type fileConfig struct {
	LogLevel    string         `json:"log_level"`
	GatewayURL  string         `json:"gateway_url"`
	RestBaseURL string         `json:"rest_base_url"`
	MetricsAddr string         `json:"metrics_addr"`
	Bus         fileBusConfig  `json:"bus"`
	Cache       fileCacheFlags `json:"cache"`
}

type fileBusConfig struct {
	Buffer         *int   `json:"buffer"`
	Workers        *int   `json:"workers"`
	HandlerTimeout string `json:"handler_timeout"`
}

type fileCacheFlags struct {
	DisabledEvents        []string `json:"disabled_events"`
	EmitRawEvents         *bool    `json:"emit_raw_events"`
	LoadAllMembers        *bool    `json:"load_all_members"`
	GuildSubscriptions    *bool    `json:"guild_subscriptions"`
	StoreOfflinePresences *bool    `json:"store_offline_presences"`
	RetainOfflineMembers  *bool    `json:"retain_offline_members"`
	LargeGuildThreshold   *int     `json:"large_guild_threshold"`
	MessageLimit          *int     `json:"message_limit"`
}

// gatewayRequester satisfies disgate.Requester by splitting the two call
// shapes across collaborators: roster fetches ride the gateway socket,
// enrichment goes over REST.
type gatewayRequester struct {
	socket *transport.Socket
	rest   *rest.Client
}

func (r *gatewayRequester) RequestGuildMembers(ctx context.Context, req disgate.MemberFetchRequest) error {
	if r.socket == nil {
		return disgate.ErrNoRequester
	}

	return r.socket.RequestGuildMembers(ctx, req)
}

func (r *gatewayRequester) Enrich(ctx context.Context) error {
	if r.rest == nil {
		return disgate.ErrNoRequester
	}

	return r.rest.Enrich(ctx)
}

func run() error {
	// a missing .env is the common case outside development
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	onAsyncError := func(ctx context.Context, scope string, err error) {
		logger.ErrorContext(ctx, "disgate async error", "scope", scope, "error", err)
	}

	bus := notify.NewBus(cfg.busBuffer, cfg.busWorkers, cfg.busTimeout, onAsyncError)

	requester := &gatewayRequester{}
	engineOptions := append([]state.Option{
		state.WithLogger(logger),
		state.WithAsyncErrorSink(onAsyncError),
	}, cfg.engineOptions...)

	var metrics *state.Metrics
	registry := prometheus.NewRegistry()
	if cfg.metricsAddr != "" {
		metrics = state.NewMetrics(registry)
		engineOptions = append(engineOptions, state.WithMetrics(metrics))
		defer startMetricsServer(logger, cfg.metricsAddr, registry)()
	}

	engine := state.New(requester, bus, engineOptions...)
	metrics.RegisterStoreGauges(registry, engine.Store())

	restClient, err := rest.NewClient(cfg.restBaseURL, cfg.token, rest.WithClientLogger(logger))
	if err != nil {
		return fmt.Errorf("new rest client: %w", err)
	}
	requester.rest = restClient

	socket, err := transport.NewSocket(cfg.gatewayURL, cfg.token, engine,
		transport.WithSocketLogger(logger),
		transport.WithSocketErrorSink(onAsyncError),
	)
	if err != nil {
		return fmt.Errorf("new gateway socket: %w", err)
	}
	requester.socket = socket

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := subscribeLogPrinter(ctx, bus, logger); err != nil {
		return fmt.Errorf("subscribe printer: %w", err)
	}

	runErr := socket.Run(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	if err := bus.Close(shutdownCtx); err != nil {
		logger.Error("notification bus shutdown", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run gateway socket: %w", runErr)
	}

	return nil
}

// subscribeLogPrinter streams every notification to the structured log so
// the demo binary shows the normalized event flow.
func subscribeLogPrinter(ctx context.Context, bus *notify.Bus, logger *slog.Logger) error {
	_, err := bus.Subscribe(ctx, disgate.SubscriptionSpec{
		Name:         "log-printer",
		Backpressure: disgate.BackpressureDropOldest,
	}, func(ctx context.Context, note *disgate.Notification) error {
		attrs := []any{"kind", note.Kind, "id", note.ID}
		if note.Seq > 0 {
			attrs = append(attrs, "seq", note.Seq)
		}
		if note.Guild != nil {
			attrs = append(attrs, "guild", note.Guild.ID)
		}
		if note.Channel != nil {
			attrs = append(attrs, "channel", note.Channel.ID)
		}
		if note.User != nil {
			attrs = append(attrs, "user", note.User.ID)
		}
		if len(note.Differences) > 0 {
			attrs = append(attrs, "changed_fields", len(note.Differences))
		}
		if note.Err != nil {
			attrs = append(attrs, "error", note.Err)
		}
		logger.InfoContext(ctx, "notification", attrs...)

		return nil
	})

	return err
}

// startMetricsServer serves the Prometheus endpoint and returns its stopper.
func startMetricsServer(logger *slog.Logger, addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()

	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}
	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, err
		}
	}

	cfg.token = strings.TrimSpace(os.Getenv(envToken))
	if cfg.token == "" {
		return appConfig{}, fmt.Errorf("environment variable %s is required", envToken)
	}
	if cfg.gatewayURL == "" {
		return appConfig{}, fmt.Errorf("gateway_url is required")
	}
	if cfg.restBaseURL == "" {
		return appConfig{}, fmt.Errorf("rest_base_url is required")
	}

	return cfg, nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel:        slog.LevelInfo,
		shutdownTimeout: defaultShutdownTimeout,
		busBuffer:       defaultBusBuffer,
		busWorkers:      defaultBusWorkers,
		busTimeout:      defaultBusTimeout,
	}
}

func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", nil
}

func applyConfigFile(cfg *appConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var file fileConfig
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if file.LogLevel != "" {
		level, err := parseLogLevel(file.LogLevel)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.logLevel = level
	}
	cfg.gatewayURL = file.GatewayURL
	cfg.restBaseURL = file.RestBaseURL
	cfg.metricsAddr = file.MetricsAddr

	if file.Bus.Buffer != nil && *file.Bus.Buffer > 0 {
		cfg.busBuffer = *file.Bus.Buffer
	}
	if file.Bus.Workers != nil && *file.Bus.Workers > 0 {
		cfg.busWorkers = *file.Bus.Workers
	}
	if file.Bus.HandlerTimeout != "" {
		timeout, err := time.ParseDuration(file.Bus.HandlerTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: parse bus handler_timeout: %w", path, err)
		}
		cfg.busTimeout = timeout
	}

	cfg.engineOptions = append(cfg.engineOptions, cacheOptions(file.Cache)...)

	return nil
}

func cacheOptions(flags fileCacheFlags) []state.Option {
	options := make([]state.Option, 0)
	if len(flags.DisabledEvents) > 0 {
		options = append(options, state.WithDisabledEvents(flags.DisabledEvents...))
	}
	if flags.EmitRawEvents != nil {
		options = append(options, state.WithRawEvents(*flags.EmitRawEvents))
	}
	if flags.LoadAllMembers != nil {
		options = append(options, state.WithLoadAllMembers(*flags.LoadAllMembers))
	}
	if flags.GuildSubscriptions != nil {
		options = append(options, state.WithGuildSubscriptions(*flags.GuildSubscriptions))
	}
	if flags.StoreOfflinePresences != nil {
		options = append(options, state.WithOfflinePresences(*flags.StoreOfflinePresences))
	}
	if flags.RetainOfflineMembers != nil {
		options = append(options, state.WithOfflineMembers(*flags.RetainOfflineMembers))
	}
	if flags.LargeGuildThreshold != nil {
		options = append(options, state.WithLargeGuildThreshold(*flags.LargeGuildThreshold))
	}
	if flags.MessageLimit != nil {
		options = append(options, state.WithMessageLimit(*flags.MessageLimit))
	}

	return options
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
