// cmd/storefront/main.go
package main

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/service/shop/application"
	"storefront/internal/service/shop/domain"
	"storefront/internal/service/shop/domain/port"
	"storefront/internal/service/shop/infrastructure"
	"storefront/internal/service/shop/infrastructure/rule"
	"storefront/internal/service/shop/interfaces"
)

const serviceName = "storefront"

// main 是应用的组装根：创建并组装所有依赖项，然后启动服务。
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. 仓储：启用 MySQL / Redis 时使用持久化实现，否则退化为内存实现
	var closers []func()
	var ledgerRepo domain.LedgerRepository = infrastructure.NewMemoryLedgerRepository()
	if cfg.Infra.MySQL.Enabled {
		db, err := infrastructure.NewMySQLDB(cfg.Infra.MySQL)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect mysql")
		}
		repo := infrastructure.NewGormLedgerRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			zlog.Fatal().Err(err).Msg("failed to migrate schema")
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		ledgerRepo = repo
	}

	var sessionRepo domain.SessionRepository = infrastructure.NewMemorySessionRepository(cfg.Shop.SessionTTL)
	if cfg.Infra.Redis.Enabled {
		client, err := infrastructure.NewRedisClient(ctx, cfg.Infra.Redis)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect redis")
		}
		closers = append(closers, func() { _ = client.Close() })
		sessionRepo = infrastructure.NewRedisSessionRepository(client, cfg.Shop.SessionTTL)
	}

	// 2. 领域事件
	var publisher port.EventPublisher
	if cfg.Infra.Kafka.Enabled {
		orderWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderTopic)
		discountWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DiscountTopic)
		closers = append(closers, closeWriter(orderWriter), closeWriter(discountWriter))
		publisher = infrastructure.NewKafkaEventPublisher(orderWriter, discountWriter)
	}

	// 3. 领域核心
	issuanceRule, err := rule.NewCELIssuanceRule(cfg.Shop.IssuanceRule)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid issuance rule")
	}
	ledger := domain.NewLedger(
		domain.NewCatalog(domain.DefaultProducts()),
		domain.NewUserDirectory(domain.DefaultUsers()),
		domain.WithDiscountInterval(cfg.Shop.DiscountInterval),
		domain.WithDiscountPercentage(cfg.Shop.DiscountPercentage),
		domain.WithIssuanceRule(issuanceRule),
	)

	shopService := application.NewShopService(ledger, ledgerRepo, sessionRepo, publisher, otel.Tracer(serviceName))
	if err := shopService.Restore(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("failed to restore ledger")
	}

	hub := interfaces.NewStatsHub()
	handler := interfaces.NewShopHandler(shopService, hub)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(app bootstrap.AppCtx) {
			handler.RegisterRoutes(app.Mux)
			app.Group.Go(func() error {
				hub.Run(app.Ctx)
				return nil
			})
		},
		OnShutdown: func(context.Context) {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	})
}

func closeWriter(w *kafka.Writer) func() {
	return func() {
		if err := w.Close(); err != nil {
			zlog.Error().Err(err).Str("topic", w.Topic).Msg("failed to close kafka writer")
		}
	}
}
