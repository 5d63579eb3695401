// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/cache"
	"github.com/LeeDigitalWorks/zapprops/pkg/debug"
	"github.com/LeeDigitalWorks/zapprops/pkg/env"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/api"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/filter"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// poolStatsInterval is how often SQL connection pool gauges are refreshed.
const poolStatsInterval = 15 * time.Second

type ServerOpts struct {
	IP        string
	GRPCPort  int
	DebugPort int
	TLS       utils.TLSConfig

	DB DatabaseOpts

	HandleTTL  time.Duration
	MaxHandles int

	RateLimitEnabled bool
	RateLimit        filter.RateLimitConfig
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the container property server",
	Long: `Start a zapprops server that:
- stores container properties in the configured database backend
- serves the container gRPC API
- exposes /metrics, /health, /ready and pprof on the debug port`,
	Run: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	f := serverCmd.Flags()
	f.String("ip", utils.DetectedHostAddress(), "IP address to bind to")
	f.Int("grpc_port", 8090, "gRPC port for the container service")
	f.Int("debug_port", 8091, "Debug HTTP port (metrics, pprof, health)")
	f.String("cert_file", "", "Path to TLS certificate file")
	f.String("key_file", "", "Path to TLS key file")
	f.String("ca_file", "", "Path to CA file; enables mutual TLS")

	addDatabaseFlags(f)

	// Handles
	f.Duration("handle_ttl", cache.DefaultHandleTTL, "Idle time after which an open handle expires (negative disables)")
	f.Int("max_handles", 0, "Maximum open handles across all containers (0 = unlimited)")

	// Rate limiting
	def := filter.DefaultRateLimitConfig()
	f.Bool("rate_limit_enabled", true, "Enable request rate limiting (ignored when ENV=local)")
	f.Float64("rate_limit_global_read_rps", def.GlobalReadRPS, "Global read requests per second (0 = unlimited)")
	f.Float64("rate_limit_global_write_rps", def.GlobalWriteRPS, "Global write requests per second (0 = unlimited)")
	f.Float64("rate_limit_peer_read_rps", def.PeerReadRPS, "Per-peer read requests per second (0 = unlimited)")
	f.Float64("rate_limit_peer_write_rps", def.PeerWriteRPS, "Per-peer write requests per second (0 = unlimited)")
	f.Int("rate_limit_burst_multiplier", def.BurstMultiplier, "Burst multiplier for rate limiting")
	f.Duration("rate_limit_idle_timeout", def.IdleTimeout, "Evict per-peer limiters idle for this long")
	f.Bool("rate_limit_redis_enabled", false, "Share per-peer budgets between servers via Redis")
	f.String("rate_limit_redis_addr", def.Redis.Addr, "Redis address for distributed rate limiting")
	f.String("rate_limit_redis_password", "", "Redis password for distributed rate limiting")
	f.Int("rate_limit_redis_db", 0, "Redis database number for distributed rate limiting")
	f.Int("rate_limit_redis_pool_size", def.Redis.PoolSize, "Redis connection pool size for distributed rate limiting")
	f.Bool("rate_limit_redis_fail_open", def.Redis.FailOpen, "Allow requests when Redis is unavailable")

	viper.BindPFlags(f)
}

func runServer(cmd *cobra.Command, args []string) {
	utils.LoadConfiguration("zapprops", false)
	env.Load()
	opts := loadServerOpts(cmd)

	debug.SetNotReady()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	// Database
	rawDB, err := initializeDatabase(opts.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	// Wrap with metrics instrumentation
	propsDB := db.NewMetricsDB(rawDB)
	defer propsDB.Close()
	if err := propsDB.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run database migrations")
	}

	handles := cache.NewHandleTable(cache.HandleTableConfig{
		IdleTTL:    opts.HandleTTL,
		MaxHandles: opts.MaxHandles,
	})
	defer handles.Stop()

	svc, err := container.NewService(container.Config{
		DB:      propsDB,
		Handles: handles,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create container service")
	}

	rateLimiter, closeLimiter := initializeRateLimiter(opts)
	defer closeLimiter()

	containerServer, err := api.NewContainerServer(api.ServerConfig{
		Service:     svc,
		RateLimiter: rateLimiter,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create container server")
	}

	var grpcOpts []grpc.ServerOption
	tlsOpt, err := utils.GetServerOption(opts.TLS)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load TLS credentials")
	}
	if tlsOpt != nil {
		logger.Info().Bool("mtls", opts.TLS.CAFile != "").Msg("gRPC server using TLS")
		grpcOpts = append(grpcOpts, tlsOpt)
	}
	grpcServer := containerServer.NewGRPCServer(grpcOpts...)

	grpcAddr := utils.JoinHostPort(opts.IP, opts.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("grpc_addr", grpcAddr).Msg("failed to create gRPC listener")
	}
	debugServer := debug.NewServer(utils.JoinHostPort(opts.IP, opts.DebugPort))

	// Readiness follows the database
	debug.SetReadyCheck(func(ctx context.Context) error {
		return db.Ping(ctx, propsDB)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("grpc_addr", grpcAddr).Str("driver", opts.DB.Driver).Msg("Starting container gRPC server")
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("debug_addr", debugServer.Addr).Msg("Starting debug server")
		if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("debug server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		containerServer.Run(gctx)
		return nil
	})
	if reporter, ok := rawDB.(interface{ ReportPoolStats() }); ok {
		g.Go(func() error {
			utils.RunJittered(gctx, poolStatsInterval, 0.1, reporter.ReportPoolStats)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		debug.SetNotReady()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return debugServer.Shutdown(shutdownCtx)
	})

	debug.SetReady()
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
}

func loadServerOpts(cmd *cobra.Command) ServerOpts {
	f := NewFlagLoader(cmd)

	rl := filter.DefaultRateLimitConfig()
	rl.GlobalReadRPS = f.Float64("rate_limit_global_read_rps")
	rl.GlobalWriteRPS = f.Float64("rate_limit_global_write_rps")
	rl.PeerReadRPS = f.Float64("rate_limit_peer_read_rps")
	rl.PeerWriteRPS = f.Float64("rate_limit_peer_write_rps")
	rl.BurstMultiplier = f.Int("rate_limit_burst_multiplier")
	rl.IdleTimeout = f.Duration("rate_limit_idle_timeout")
	rl.Redis.Enabled = f.Bool("rate_limit_redis_enabled")
	rl.Redis.Addr = f.String("rate_limit_redis_addr")
	rl.Redis.Password = f.String("rate_limit_redis_password")
	rl.Redis.DB = f.Int("rate_limit_redis_db")
	rl.Redis.PoolSize = f.Int("rate_limit_redis_pool_size")
	rl.Redis.FailOpen = f.Bool("rate_limit_redis_fail_open")

	return ServerOpts{
		IP:        f.String("ip"),
		GRPCPort:  f.Int("grpc_port"),
		DebugPort: f.Int("debug_port"),
		TLS: utils.TLSConfig{
			CertFile: f.String("cert_file"),
			KeyFile:  f.String("key_file"),
			CAFile:   f.String("ca_file"),
		},
		DB:               loadDatabaseOpts(f),
		HandleTTL:        f.Duration("handle_ttl"),
		MaxHandles:       f.Int("max_handles"),
		RateLimitEnabled: f.Bool("rate_limit_enabled"),
		RateLimit:        rl,
	}
}

// initializeRateLimiter builds the gRPC rate limiter, or nil when rate
// limiting is off. Local environments never rate limit.
func initializeRateLimiter(opts ServerOpts) (*filter.RateLimiter, func()) {
	if !opts.RateLimitEnabled || env.IsLocal() {
		logger.Info().Str("env", env.Env()).Msg("rate limiting disabled")
		return nil, func() {}
	}

	var distributed *filter.SharedBudget
	if opts.RateLimit.Redis.Enabled {
		var err error
		distributed, err = filter.NewSharedBudget(opts.RateLimit.Redis)
		if err != nil {
			if !opts.RateLimit.Redis.FailOpen {
				logger.Fatal().Err(err).Msg("failed to connect to rate limit Redis")
			}
			logger.Warn().Err(err).Msg("rate limit Redis unavailable, using local limits only")
		} else {
			logger.Info().
				Str("redis_addr", opts.RateLimit.Redis.Addr).
				Bool("fail_open", opts.RateLimit.Redis.FailOpen).
				Msg("distributed rate limiting enabled via Redis")
		}
	}

	rl := filter.NewRateLimiter(opts.RateLimit, distributed)
	return rl, func() {
		if distributed != nil {
			distributed.Close()
		}
	}
}
