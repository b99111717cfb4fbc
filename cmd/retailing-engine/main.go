// Command retailing-engine is the process entrypoint: it wires the
// config, logger, database, cache, and event bus into the four core
// components (OfferGenerator, HoldManager, OrderEngine, ExpiryWorker) and
// serves the HTTP surface, in the same init*/setupRoutes/startServer shape
// as order_service/main.go.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/config"
	"iaros/retailing-engine/internal/events"
	"iaros/retailing-engine/internal/expiry"
	"iaros/retailing-engine/internal/external"
	"iaros/retailing-engine/internal/hold"
	"iaros/retailing-engine/internal/httpapi"
	"iaros/retailing-engine/internal/inventory"
	"iaros/retailing-engine/internal/logging"
	"iaros/retailing-engine/internal/migrations"
	"iaros/retailing-engine/internal/offer"
	"iaros/retailing-engine/internal/order"
	"iaros/retailing-engine/internal/pricing"
	"iaros/retailing-engine/internal/rules"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := initDatabase(cfg, log)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	rdb, err := initRedis(cfg)
	if err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()

	bus, err := events.New(splitBrokers(cfg.KafkaBrokers), "retailing.events", cfg.NatsURL, log)
	if err != nil {
		log.Fatal("event bus init failed", zap.Error(err))
	}
	defer bus.Close()

	catalogStore := catalog.NewStore(db, log)
	index := inventory.New(rdb, catalogStore, log)
	pricer := pricing.NewEngine(log)
	ruleStore := rules.NewStore(db, cfg.RuleCacheTTL, log)

	offerStore := offer.NewStore(rdb, db, log)
	flightSearch := external.NewFlightSearchClient(os.Getenv("FLIGHT_SEARCH_URL"), cfg.ExternalCallTimeout, log)
	ancillaryCatalog := external.NewAncillaryCatalogClient(os.Getenv("ANCILLARY_CATALOG_URL"), cfg.ExternalCallTimeout, log)
	generator := offer.NewGenerator(flightSearch, ancillaryCatalog, index, pricer, ruleStore, offerStore, bus, log)

	orderStore := order.NewStore(db, log)
	paymentClient := external.NewPaymentClient(os.Getenv("PAYMENT_GATEWAY_URL"), cfg.PaymentCallTimeout, log)
	orderEngine := order.NewEngine(orderStore, paymentClient, bus, cfg.OrderHoldTTL, log)

	holdManager := hold.NewManager(index, offerStore, orderStore, bus, cfg.OrderHoldTTL, log)

	worker := expiry.NewWorker(orderStore, offerStore, holdManager, bus, cfg.ExpirySweepBatch, log)
	worker.Start(cfg.ExpirySweepInterval)
	defer worker.Stop()

	handler := httpapi.NewHandler(generator, offerStore, holdManager, orderEngine, orderStore, log)
	router := httpapi.NewRouter(handler, cfg.Environment, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("retailing-engine listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// initDatabase opens the GORM connection and runs the additive
// AutoMigrate every model needs, in the same style as
// order_service/src/database/connection.go's Connect.
func initDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormLogLevel := gormlogger.Warn
	if cfg.Environment != "production" {
		gormLogLevel = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&catalog.Product{},
		&catalog.Flight{},
		&rules.PricingRule{},
		&rules.BundleTemplate{},
		&rules.InventoryRule{},
		&rules.GenerationRule{},
		&offer.AuditRecord{},
		&order.Order{},
		&order.OrderItem{},
		&order.Traveler{},
		&order.Contact{},
		&order.Fulfillment{},
		&order.LedgerEntry{},
		&order.ChangeEntry{},
	); err != nil {
		return nil, err
	}

	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		return nil, err
	}

	if err := seedBundleDefaults(db, cfg.BundleDefaultsPath, log); err != nil {
		return nil, err
	}

	log.Info("database connected and migrated")
	return db, nil
}

// seedBundleDefaults loads BUNDLE_DEFAULTS_PATH (if configured) and
// upserts each entry into bundle_templates with a deterministic id, so a
// fresh deployment has a working bundle template before any admin has
// authored one through the out-of-scope rule-authoring UI.
func seedBundleDefaults(db *gorm.DB, path string, log *zap.Logger) error {
	defaults, err := config.LoadBundleDefaults(path)
	if err != nil {
		return err
	}
	for _, d := range defaults {
		tmpl := rules.BundleTemplate{
			ID:                 "seed:" + d.AirlineID + ":" + d.Name,
			AirlineID:          d.AirlineID,
			Name:               d.Name,
			Priority:           d.Priority,
			DiscountPercentage: d.DiscountPercentage,
			IsActive:           true,
		}
		for _, s := range d.Slots {
			tmpl.Slots = append(tmpl.Slots, rules.BundleSlot{
				ProductType: catalog.ProductType(s.ProductType),
				Required:    s.Required,
			})
		}
		if err := tmpl.EncodeSlots(); err != nil {
			return err
		}
		if err := db.Where(rules.BundleTemplate{ID: tmpl.ID}).
			Assign(tmpl).
			FirstOrCreate(&rules.BundleTemplate{}).Error; err != nil {
			return err
		}
	}
	if len(defaults) > 0 {
		log.Info("seeded bundle template defaults", zap.Int("count", len(defaults)))
	}
	return nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func splitBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
