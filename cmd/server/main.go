// Command skillmarket-server starts the marketplace HTTP API and its gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/skillmarket/internal/config"
	"github.com/and161185/skillmarket/internal/crypto"
	"github.com/and161185/skillmarket/internal/migrate"
	"github.com/and161185/skillmarket/internal/repository/postgres"
	grpcserver "github.com/and161185/skillmarket/internal/server/grpc"
	httpserver "github.com/and161185/skillmarket/internal/server/http"
	"github.com/and161185/skillmarket/internal/service"
	"github.com/and161185/skillmarket/internal/token"
	"github.com/and161185/skillmarket/internal/worker"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	// Flags override file and environment settings.
	cfgPath := flag.String("config", "", "YAML config file (optional)")
	addr := flag.String("addr", "", "HTTP listen address")
	adminAddr := flag.String("admin-addr", "", "gRPC health listen address")
	dsn := flag.String("dsn", "", "PostgreSQL DSN")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key")
	tokenTTL := flag.Duration("token-ttl", 0, "access token lifetime")
	hashScheme := flag.String("hash", "", "password hashing scheme (pbkdf2-sha256|argon2id)")
	dev := flag.Bool("dev", false, "development logging and gRPC reflection")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		bootFail(err)
	}
	applyFlags(cfg, *addr, *adminAddr, *dsn, *jwtKey, *tokenTTL, *hashScheme, *dev)
	if err := cfg.Validate(); err != nil {
		bootFail(err)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("adminAddr", cfg.Admin.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.AutoMigrate {
		if err := migrate.Up(ctx, cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	itemRepo := postgres.NewItemRepo(db)

	hasher, err := crypto.NewHasher(cfg.Auth.HashScheme)
	if err != nil {
		logger.Fatal("hasher", zap.Error(err))
	}
	codec, err := token.NewCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenLifetime)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	logger.Info("auth settings", authFields(hasher, codec)...)

	downloads := worker.NewDownloadCounter(itemRepo, cfg.Downloads.QueueSize, logger.Named("downloads"))

	// Services
	authSvc := service.NewAuthService(userRepo, hasher, codec, logger.Named("auth"))
	itemSvc := service.NewItemService(itemRepo, downloads)

	api := httpserver.New(httpserver.Options{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		BodyLimit:    cfg.HTTP.BodyLimit,
	}, authSvc, itemSvc, httpserver.NewAuthGate(codec), logger.Named("http"))

	admin := grpcserver.NewAdmin(db.Ping, cfg.Admin.ProbeInterval, cfg.Dev, logger.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.Admin.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	// The download worker stops only after the HTTP server has drained.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(api.Serve)
	g.Go(func() error { return admin.Serve(lis) })
	g.Go(func() error { return admin.Watch(gctx) })
	g.Go(func() error { return downloads.Run(workerCtx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		admin.Stop(cfg.ShutdownTimeout)
		err := api.Shutdown(sctx)
		stopWorker()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func applyFlags(cfg *config.Config, addr, adminAddr, dsn, jwtKey string, ttl time.Duration, hash string, dev bool) {
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if adminAddr != "" {
		cfg.Admin.Addr = adminAddr
	}
	if dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if jwtKey != "" {
		cfg.Auth.JWTSecret = jwtKey
	}
	if ttl > 0 {
		cfg.Auth.TokenLifetime = ttl
	}
	if hash != "" {
		cfg.Auth.HashScheme = hash
	}
	if dev {
		cfg.Dev = true
	}
}

func authFields(h interface{ Scheme() string }, c interface{ Lifetime() time.Duration }) []zap.Field {
	return []zap.Field{
		zap.String("hashScheme", h.Scheme()),
		zap.Duration("tokenLifetime", c.Lifetime()),
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func bootFail(err error) {
	fmt.Fprintln(os.Stderr, "skillmarket-server:", err)
	os.Exit(2)
}
