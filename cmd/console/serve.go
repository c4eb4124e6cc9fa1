package main

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/xela07ax/mapasculturais/internal/audit"
	"github.com/xela07ax/mapasculturais/internal/console/handler"
	"github.com/xela07ax/mapasculturais/internal/console/server"
	"github.com/xela07ax/mapasculturais/internal/console/service"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"github.com/xela07ax/mapasculturais/internal/events"
	"github.com/xela07ax/mapasculturais/internal/hooks"
	"github.com/xela07ax/mapasculturais/internal/i18n"
	"github.com/xela07ax/mapasculturais/internal/infra"
	"github.com/xela07ax/mapasculturais/internal/infra/auth"
	"github.com/xela07ax/mapasculturais/internal/metrics"
	"github.com/xela07ax/mapasculturais/internal/repository/postgres"
	"github.com/xela07ax/mapasculturais/internal/storage"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the gRPC health endpoint and /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := infra.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		logger, err := infra.NewLogger(cfg.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return serve(cfg, logger)
	},
}

func serve(cfg *infra.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	i18n.SetDefault(cfg.App.DefaultLocale)

	// 1. Инфраструктура и ресурсы
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	repo, err := postgres.New(initCtx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	defer repo.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	files, err := storage.NewOS(cfg.Storage.BasePath, cfg.Storage.BaseURL, logger)
	if err != nil {
		return err
	}

	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		return fmt.Errorf("auth private key: %w", err)
	}
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		return fmt.Errorf("auth public key: %w", err)
	}

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// 3. Подписчики переходов статуса
	publisher := events.NewPublisher(rdb, logger, m.SetBreakerOpen)
	publisher.Start()
	defer publisher.Stop()

	recorder := audit.NewRecorder(repo, audit.Options{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
	}, logger)
	recorder.ObserveBuffer(m.AuditBufferFill)
	recorder.Start()
	defer recorder.Stop()

	dispatcher := hooks.NewDispatcher(logger)
	anyStatus := domain.HookPrefixRegistrationStatus + "(*)"
	dispatcher.Register(anyStatus, recorder.StatusListener(infra.TraceID))
	dispatcher.Register(anyStatus, publisher.StatusListener())
	dispatcher.Register(anyStatus, m.StatusListener())

	// 4. Сервисы
	defs := cfg.Registration.AgentRelations
	urls := service.NewURLBuilder(cfg.App.BaseURL)
	projects := service.NewProjectService(repo, cfg.App.ProjectCacheTTL, logger)
	validator := service.NewValidator(defs, repo)
	perms := service.NewPermissions(validator, m)

	registrations := service.NewRegistrationService(service.RegistrationDeps{
		Repo:               repo,
		Projects:           projects,
		Agents:             repo,
		Files:              files,
		Hooks:              dispatcher,
		Perms:              perms,
		Validator:          validator,
		Serializer:         service.NewSerializer(perms, defs, files, urls),
		Observer:           m,
		PropertiesToExport: cfg.Registration.PropertiesToExport,
	}, logger)
	agents := service.NewAgentService(repo, logger)
	auditLog := service.NewAuditService(repo, repo, perms)
	authService := service.NewAuthService(repo, privateKey, cfg.Auth.TokenTTL)

	// кэш проектов сбрасывается по сигналам других инстансов
	go events.NewProjectWatcher(rdb, projects, logger).Run(ctx)

	// 5. HTTP
	api := server.NewConsoleServer(logger, auth.NewRS256Verifier(publicKey, domain.TokenIssuer), reg, repo, server.Handlers{
		Auth:          handler.NewAuthHandler(authService, cfg.Auth.LoginRPS, cfg.Auth.LoginBurst, m.LoginThrottled, logger),
		Agents:        handler.NewAgentHandler(agents, urls, logger),
		Registrations: handler.NewRegistrationHandler(registrations, logger),
		Audit:         handler.NewAuditHandler(auditLog, logger),
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 6. gRPC health для проб оркестратора
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcSrv, healthSrv)

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort)))
	if err != nil {
		return fmt.Errorf("failed to listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC health server started", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	// 7. Graceful Shutdown
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("console API stopping")
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}

	healthSrv.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	logger.Info("console API exited properly")
	return runErr
}
