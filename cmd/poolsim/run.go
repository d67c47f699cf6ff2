package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/boxfriend/poolkit/internal/sim"
	"github.com/boxfriend/poolkit/pkg/config"
	"github.com/boxfriend/poolkit/pkg/errors"
	"github.com/boxfriend/poolkit/pkg/json"
	"github.com/boxfriend/poolkit/pkg/logger"
	"github.com/boxfriend/poolkit/pkg/metrics"
	"github.com/boxfriend/poolkit/pkg/observability"
)

// envPrefix prefixes every environment override, e.g. POOLSIM_SIMULATION_STEPS.
const envPrefix = "POOLSIM"

// flagKeys maps run flags to their configuration keys.
var flagKeys = map[string]string{
	"name":          "simulation.pool.name",
	"size":          "simulation.pool.size",
	"steps":         "simulation.steps",
	"acquire-ratio": "simulation.acquire_ratio",
	"seed":          "simulation.seed",
	"log-level":     "observability.log_level",
	"log-encoding":  "observability.log_encoding",
	"trace":         "observability.enable_tracing",
	"metrics-addr":  "observability.metrics_addr",
}

// output is the JSON document printed by run.
type output struct {
	sim.Report
	RSSBytes uint64 `json:"rss_bytes,omitempty"`
}

func newRunCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pool simulation",
		Long: `Run a simulation against a circular pool and print the report as JSON.

Settings are read from the defaults, then the optional YAML config file, then
POOLSIM_* environment variables, then flags.

Example:
  poolsim run --size 32 --steps 100000 --acquire-ratio 0.55 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, viper.New(), configFile)
			if err != nil {
				return err
			}
			return runSimulation(cmd, cfg)
		},
	}

	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	flags.String("name", defaults.Simulation.Pool.Name, "Pool name used in logs and metric labels")
	flags.Int("size", defaults.Simulation.Pool.Size, "Number of pooled items")
	flags.Int("steps", defaults.Simulation.Steps, "Number of acquire/release operations")
	flags.Float64("acquire-ratio", defaults.Simulation.AcquireRatio, "Probability that a step acquires instead of releases")
	flags.Int64("seed", defaults.Simulation.Seed, "Random seed")
	flags.String("log-level", defaults.Observability.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-encoding", defaults.Observability.LogEncoding, "Log encoding (json, console)")
	flags.Bool("trace", defaults.Observability.EnableTracing, "Export OpenTelemetry spans to stderr")
	flags.String("metrics-addr", defaults.Observability.MetricsAddr, "Serve Prometheus metrics on this address until interrupted")

	return cmd
}

// resolveConfig layers the defaults, the config file, the environment and
// the flags of cmd, in increasing precedence.
func resolveConfig(cmd *cobra.Command, v *viper.Viper, configFile string) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		if err := config.Load(configFile, cfg); err != nil {
			return nil, err
		}
	}

	// values already resolved from the file act as viper defaults, so that
	// unchanged flags do not override them
	setDefaults(v, cfg)

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flag").
				WithDetail("flag", flag)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode settings")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *config.Config) {
	v.SetDefault("simulation.pool.name", cfg.Simulation.Pool.Name)
	v.SetDefault("simulation.pool.size", cfg.Simulation.Pool.Size)
	v.SetDefault("simulation.steps", cfg.Simulation.Steps)
	v.SetDefault("simulation.acquire_ratio", cfg.Simulation.AcquireRatio)
	v.SetDefault("simulation.seed", cfg.Simulation.Seed)
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_encoding", cfg.Observability.LogEncoding)
	v.SetDefault("observability.enable_tracing", cfg.Observability.EnableTracing)
	v.SetDefault("observability.metrics_addr", cfg.Observability.MetricsAddr)
	v.SetDefault("observability.metrics_namespace", cfg.Observability.MetricsNamespace)
}

func runSimulation(cmd *cobra.Command, cfg *config.Config) error {
	obs := cfg.Observability
	if err := logger.Init(logger.Config{Level: obs.LogLevel, Encoding: obs.LogEncoding}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("command", "run"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if obs.EnableTracing {
		tcfg := observability.DefaultTracingConfig()
		tcfg.ServiceName = "poolsim"
		tcfg.ServiceVersion = version
		tcfg.Writer = cmd.ErrOrStderr()
		if _, err := observability.InitTracing(tcfg); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewPoolCollector(reg, obs.MetricsNamespace)

	var srv *http.Server
	if obs.MetricsAddr != "" {
		var err error
		if srv, err = serveMetrics(obs.MetricsAddr, reg, log); err != nil {
			return err
		}
	}

	log.Info("starting simulation",
		zap.String("pool", cfg.Simulation.Pool.Name),
		zap.Int("size", cfg.Simulation.Pool.Size),
		zap.Int("steps", cfg.Simulation.Steps),
		zap.Float64("acquire_ratio", cfg.Simulation.AcquireRatio),
	)
	report, err := sim.Run(ctx, cfg.Simulation,
		sim.WithLogger(log),
		sim.WithMetrics(collector),
		sim.WithProgressInterval(time.Second),
	)
	if err != nil {
		return err
	}

	out := output{Report: report, RSSBytes: residentMemory(log)}
	if err := json.MarshalIndentToWriter(cmd.OutOrStdout(), out, "  "); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write report")
	}

	if srv != nil {
		log.Info("serving metrics until interrupted", zap.String("addr", obs.MetricsAddr))
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to listen for metrics").
			WithDetail("addr", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv, nil
}

// residentMemory is the process RSS, or 0 when it can not be read.
func residentMemory(log *zap.Logger) uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Debug("process stats unavailable", zap.Error(err))
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		log.Debug("process stats unavailable", zap.Error(err))
		return 0
	}
	return mem.RSS
}
