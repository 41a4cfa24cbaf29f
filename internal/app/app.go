// Package app собирает витрину: хранилища, сервис оформления, gRPC, HTTP-метрики и outbox worker.
package app

import (
	"context"
	"errors"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const gracefulStopTimeout = 5 * time.Second

// Run запускает сервис и блокируется до отмены ctx или ошибки gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if deps.closeFn != nil {
		defer func() {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("failed to close storage")
			}
		}()
	}

	// Без Kafka события остаются в outbox и пишутся в лог.
	kafkaProducer, _ := initKafkaProducer(cfg, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	checkoutService := newCheckoutService(cfg, deps, prometheus.DefaultRegisterer, logger)

	publisher, dlqPublisher := outboxPublishers(kafkaProducer, logger)
	stopWorker := startOutboxWorker(ctx, cfg, deps.outboxRepo, publisher, dlqPublisher, logger)
	defer stopWorker()

	storefront := newStorefrontServer(checkoutService, logger)
	opsSrv := startOpsServer(ctx, cfg.MetricsAddr, newOpsHandler(prometheus.DefaultGatherer, newHealthHandler(cfg, deps)), logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(opsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(version.Fields()).Infof("gRPC server listening on %s", lis.Addr())
		errCh <- storefront.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping gRPC server")
		storefront.stop(logger)
		shutdownHTTP(opsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(opsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// newHealthHandler регистрирует проверки хранилища и backlog outbox.
func newHealthHandler(cfg Config, deps runtimeDependencies) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		handler.RegisterChecker("storage", deps.storageChecker)
	}
	if deps.outboxRepo != nil {
		handler.RegisterChecker("outbox", healthcheck.NewOutboxChecker("outbox", deps.outboxRepo, cfg.OutboxMaxPending, cfg.OutboxMaxAge))
	}
	return handler
}

// startOutboxWorker запускает доставку событий заказов в фоне.
// Возвращённая функция останавливает воркер и ждёт конца текущего батча.
func startOutboxWorker(ctx context.Context, cfg Config, repo domain.OutboxRepository, publisher, dlq domain.OutboxPublisher, logger *log.Entry) func() {
	options := []outbox.Option{
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlq != nil {
		options = append(options, outbox.WithDLQPublisher(dlq))
	}
	worker := outbox.NewWorker(repo, publisher, options...)

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	return func() { shutdownOutboxWorker(cancel, done, logger) }
}

// shutdownOutboxWorker останавливает worker и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(gracefulStopTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}

// storefrontServer: gRPC-сервер витрины вместе со стандартным health-сервисом.
type storefrontServer struct {
	grpc   *grpc.Server
	health *health.Server
}

func newStorefrontServer(service *checkout.Service, logger *log.Entry) storefrontServer {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.LoggingUnaryInterceptor(logger.WithField("layer", "grpc")),
	))
	grpcsvc.RegisterStorefrontServer(server, grpcsvc.NewStorefrontService(service, logger.WithField("layer", "grpc")))
	grpcMetrics.InitializeMetrics(server)
	reflection.Register(server)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return storefrontServer{grpc: server, health: healthServer}
}

// stop переводит health в NOT_SERVING и ждёт активные вызовы не дольше gracefulStopTimeout.
func (s storefrontServer) stop(logger *log.Entry) {
	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(gracefulStopTimeout):
		logger.Warn("graceful stop timed out, forcing stop")
		s.grpc.Stop()
	}
}
