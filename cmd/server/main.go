package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradeterm/internal/api"
	"tradeterm/internal/config"
	"tradeterm/internal/engine"
	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
	"tradeterm/internal/repository"
	"tradeterm/internal/service"
	"tradeterm/internal/strategy"
	"tradeterm/internal/websocket"
	"tradeterm/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(utils.LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	settingsRepo := repository.NewSettingsRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	// Контекст фоновых циклов, отменяется при shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub для real-time обновлений UI
	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run()

	// Политика исполнения: дефолт из конфига, БД перекрывает
	initial := models.DefaultPolicy()
	initial.Network = cfg.Trading.Network
	initial.StrictMode = cfg.Trading.StrictMode
	initial.LeverageDefault = cfg.Trading.DefaultLeverage
	initial.RiskPct = cfg.Trading.RiskPct
	policyStore := engine.NewPolicyStore(initial)

	settingsService := service.NewSettingsService(settingsRepo, policyStore, cfg.Security.EncryptionKey, logger.Named("settings"))
	policy, err := settingsService.Load()
	if err != nil {
		logger.Fatal("failed to load execution policy", zap.Error(err))
	}
	logger.Info("execution policy loaded",
		zap.String("network", policy.Network),
		zap.Bool("strict_mode", policy.StrictMode))

	// Журнал сделок: persist + broadcast в UI
	journalService := service.NewJournalService(tradeRepo, hub, logger.Named("journal"))
	go journalService.Run(ctx)

	// Биржа по сети из политики. Отсутствие ключей не мешает старту:
	// терминал поднимается, ключи вводятся через настройки.
	ex := exchange.NewBybit(policy.Network)
	connected := connectExchange(ctx, ex, settingsService, policy.Network, logger)

	// Смена сети в настройках переводит и биржевой клиент: без этого
	// политика указывала бы на одну сеть, а ордера шли бы в другую
	settingsService.SetNetworkChanged(func(network string) {
		apiKey, apiSecret, err := settingsService.Credentials(network)
		if err != nil {
			logger.Warn("network switched but no credentials for it, exchange disconnected",
				zap.String("network", network), zap.Error(err))
			hub.BroadcastNotification(models.Notification{
				Type:      models.NotificationTypeNetwork,
				Severity:  models.SeverityWarn,
				Message:   fmt.Sprintf("network switched to %s, save api credentials to reconnect", network),
				Timestamp: time.Now(),
			})
			return
		}
		if err := ex.SwitchNetwork(ctx, network, apiKey, apiSecret); err != nil {
			logger.Error("failed to switch exchange network",
				zap.String("network", network), zap.Error(err))
			hub.BroadcastNotification(models.Notification{
				Type:      models.NotificationTypeNetwork,
				Severity:  models.SeverityError,
				Message:   fmt.Sprintf("exchange reconnect to %s failed: %v", network, err),
				Timestamp: time.Now(),
			})
			return
		}
		logger.Info("exchange switched", zap.String("network", network))
		hub.BroadcastNotification(models.Notification{
			Type:      models.NotificationTypeNetwork,
			Severity:  models.SeverityInfo,
			Message:   fmt.Sprintf("exchange reconnected to %s", network),
			Timestamp: time.Now(),
		})
	})

	// Real-time фиды для UI: приватный стрим позиций, публичная
	// прайс-лента по выбранным символам, периодический баланс
	if connected {
		if err := ex.SubscribePositions(hub.BroadcastPosition); err != nil {
			logger.Warn("position stream unavailable", zap.Error(err))
		}
		if auto, err := settingsService.AutoTrade(); err == nil {
			for _, symbol := range auto.Symbols {
				if err := ex.SubscribeTicker(symbol, hub.BroadcastTicker); err != nil {
					logger.Warn("ticker stream unavailable",
						zap.String("symbol", symbol),
						zap.Error(err))
				}
			}
		}
		go balanceLoop(ctx, ex, hub, logger)
	}

	// Уведомления движка уходят в UI через hub
	notify := func(n models.Notification) {
		if n.Timestamp.IsZero() {
			n.Timestamp = time.Now()
		}
		hub.BroadcastNotification(n)
	}

	// Торговый движок
	calc := engine.NewPrecisionCalculator(ex)
	protector := engine.NewProtector(ex, calc, logger.Named("protect"), notify,
		cfg.Trading.TradingStopRetries, cfg.Trading.RiskPct)
	protector.SetOrderTimeout(cfg.Trading.OrderTimeout)

	// Закрытия, порождённые движком (аварийные, сигнальные), тоже
	// попадают в журнал сделок
	journalSink := func(trade models.TradeRecord) {
		journalService.Record(&trade)
	}
	protector.SetJournal(journalSink)

	reconciler := engine.NewReconciler(ex, protector, logger.Named("reconcile"), notify,
		cfg.Trading.ReconcileInterval)
	go reconciler.Start(ctx)

	aggregator := engine.NewAggregator(ex, logger.Named("confluence"),
		strategy.TrendDirection, cfg.Trading.HTFTrendTTL)

	registry := strategy.NewDefaultRegistry()

	settingsFunc := func() models.AutoTradeSettings {
		auto, err := settingsService.AutoTrade()
		if err != nil {
			logger.Warn("failed to load auto trade settings", zap.Error(err))
			return models.AutoTradeSettings{}
		}
		if auto.MaxPositions <= 0 {
			auto.MaxPositions = cfg.Trading.MaxPositions
		}
		return *auto
	}

	autoTrader := engine.NewAutoTrader(ex, registry, aggregator, policyStore, protector,
		logger.Named("auto"), notify, settingsFunc, time.Minute)
	autoTrader.SetSignalSink(hub.BroadcastSignal)
	autoTrader.SetJournal(journalSink)

	// Автоторговля включается с прошлой сессии только если была включена явно
	if auto, err := settingsService.AutoTrade(); err == nil && auto.Enabled {
		if err := autoTrader.Start(ctx); err != nil {
			logger.Warn("failed to resume auto trading", zap.Error(err))
		} else {
			logger.Info("auto trading resumed")
		}
	}

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		Policy:          policyStore,
		Executor:        protector,
		Positions:       ex,
		Auto:            autoTrader,
		SettingsService: settingsService,
		JournalService:  journalService,
		Hub:             hub,
		Log:             logger,

		SettingsPassHash: cfg.Security.SettingsPassHash,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Сначала останавливаем приём новых intents и дожидаемся,
	// пока начатые защитные последовательности доработают до конца
	autoTrader.Stop()
	autoTrader.Wait()
	reconciler.Stop()
	reconciler.Wait()
	cancel()

	if err := ex.Close(); err != nil {
		logger.Warn("error closing exchange connection", zap.Error(err))
	}
	exchange.CloseGlobalClient()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// connectExchange подключает биржу, если для сети сохранены ключи.
// Любая ошибка здесь не фатальна: подключение повторяется после
// сохранения ключей через настройки.
func connectExchange(ctx context.Context, ex exchange.Exchange, settings *service.SettingsService, network string, logger *zap.Logger) bool {
	apiKey, apiSecret, err := settings.Credentials(network)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialsNotFound) {
			logger.Warn("no api credentials saved, exchange not connected",
				zap.String("network", network))
			return false
		}
		logger.Error("failed to load api credentials", zap.Error(err))
		return false
	}

	if err := ex.Connect(ctx, apiKey, apiSecret); err != nil {
		logger.Error("failed to connect to exchange",
			zap.String("network", network),
			zap.Error(err))
		return false
	}

	logger.Info("exchange connected", zap.String("network", network))
	return true
}

// balanceLoop периодически транслирует баланс аккаунта в UI
func balanceLoop(ctx context.Context, ex exchange.Exchange, hub *websocket.Hub, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			balance, err := ex.GetBalance(ctx)
			if err != nil {
				logger.Debug("balance poll failed", zap.Error(err))
				continue
			}
			hub.BroadcastBalance(ex.Network(), balance)
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
