package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	grpcctx "github.com/dtroode/rbac-server/internal/api/grpc/context"
	"github.com/dtroode/rbac-server/internal/api/grpc/middleware"
	"github.com/dtroode/rbac-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/rbac-server/internal/api/grpc/server"
	"github.com/dtroode/rbac-server/internal/cache"
	"github.com/dtroode/rbac-server/internal/config"
	"github.com/dtroode/rbac-server/internal/guard"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/metrics"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/notify"
	"github.com/dtroode/rbac-server/internal/password"
	"github.com/dtroode/rbac-server/internal/repository/memory"
	"github.com/dtroode/rbac-server/internal/repository/postgres"
	"github.com/dtroode/rbac-server/internal/seed"
	"github.com/dtroode/rbac-server/internal/server"
	"github.com/dtroode/rbac-server/internal/service"
	"github.com/dtroode/rbac-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	logAppVersion()

	stores, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer closeStores()

	permCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize permission cache", "error", err)
	}
	defer closeCache()

	m := metrics.New()
	hasher := password.NewBcrypt(cfg.Password.BcryptCost)
	tokenManager := token.NewJWT(token.Config{
		AccessSecret:  cfg.JWT.Secret,
		AccessTTL:     cfg.JWT.ExpiresIn,
		RefreshSecret: cfg.JWT.RefreshSecret,
		RefreshTTL:    cfg.JWT.RefreshExpiresIn,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
	})

	directory := service.NewDirectory(stores, hasher, permCache, logger)
	resolver := service.NewResolver(stores, permCache, logger)
	tokenService := service.NewTokenService(tokenManager, stores.RefreshTokens, logger)
	credential := service.NewCredential(stores.Users, hasher, tokenService, notify.NewLog(logger), cfg.Password.ResetTokenTTL, logger)
	accessGuard := guard.New(credential, stores.Users, resolver, m, logger)

	if cfg.Seed.Enabled {
		_, err := seed.New(stores, directory, logger).Run(ctx, seed.Admin{
			Email:    cfg.Seed.AdminEmail,
			Username: cfg.Seed.AdminUsername,
			Password: cfg.Seed.AdminPassword,
		})
		if err != nil {
			logger.Fatal("failed to seed system roles", "error", err)
		}
	}

	r := router.New(
		router.Services{Credential: credential, Directory: directory, Resolver: resolver, Guard: accessGuard},
		grpcctx.NewManager(),
		m,
		middleware.NewPeerLimiter(cfg.Throttle.Limit, cfg.Throttle.TTL),
		logger,
	)
	grpcSrv := grpcServer.NewGRPCServer(r.Register(), fmt.Sprintf(":%s", cfg.GRPC.Port))

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server on", "address", grpcSrv.Address())
		if err := grpcSrv.Start(sl); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info("Starting metrics server on", "address", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received interruption signal, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", grpcSrv.Address())
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("error during metrics server shutdown", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
	}
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func openStores(ctx context.Context, cfg *config.Config, logger *logger.Logger) (service.Stores, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		st := memory.New()
		return service.Stores{
			Permissions:   st.Permissions(),
			Roles:         st.Roles(),
			Users:         st.Users(),
			RefreshTokens: st.RefreshTokens(),
			Tx:            st,
		}, func() {}, nil
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return service.Stores{}, nil, err
	}
	return service.Stores{
		Permissions:   postgres.NewPermissionRepository(db),
		Roles:         postgres.NewRoleRepository(db),
		Users:         postgres.NewUserRepository(db),
		RefreshTokens: postgres.NewRefreshTokenRepository(db),
		Tx:            postgres.NewTxManager(db, logger),
	}, func() { _ = db.Close() }, nil
}

// openCache returns a nil cache for the none driver.
func openCache(ctx context.Context, cfg *config.Config) (model.PermissionCache, func(), error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverLRU:
		return cache.NewLRU(cfg.Cache.Size, cfg.Cache.TTL), func() {}, nil
	case config.CacheDriverRedis:
		c, err := cache.NewRedis(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Cache.TTL)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
