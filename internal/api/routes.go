package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tradeterm/internal/api/handlers"
	"tradeterm/internal/api/middleware"
	"tradeterm/internal/engine"
	"tradeterm/internal/service"
	"tradeterm/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Policy          *engine.PolicyStore
	Executor        handlers.OrderExecutor
	Positions       handlers.PositionSource
	Auto            handlers.AutoController
	SettingsService service.SettingsServiceInterface
	JournalService  service.JournalServiceInterface
	Hub             *websocket.Hub
	Log             *zap.Logger

	// bcrypt-хеш пароля терминала; пустой = мутации настроек без пароля
	SettingsPassHash string
}

// SetupRoutes настраивает все HTTP маршруты терминала.
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /orders
//	│   └── POST / - открыть защищённую позицию (ручной intent)
//	├── /positions
//	│   ├── GET / - открытые позиции с защитными уровнями
//	│   └── POST /{symbol}/close - закрыть позицию
//	├── /auto
//	│   ├── POST /start - запустить автоторговлю
//	│   ├── POST /stop - остановить автоторговлю
//	│   └── GET /status - состояние автотрейдера
//	├── /journal
//	│   ├── GET / - записи журнала сделок
//	│   └── GET /summary - агрегаты за период
//	└── /settings
//	    ├── GET / - политика + настройки автоторговли
//	    ├── PUT / - обновить политику (включая сеть)
//	    ├── PUT /auto - обновить настройки автоторговли
//	    └── PUT /credentials - сохранить ключи API
//
// /ws - WebSocket для real-time обновлений (позиции, сигналы, журнал)
// /metrics - Prometheus метрики
// /health - health check
//
// Middleware применяется в порядке: Recovery, Logging, CORS.
func SetupRoutes(deps *Dependencies) *mux.Router {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log.Named("http")))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Order routes
	if deps.Executor != nil && deps.Policy != nil {
		orderHandler := handlers.NewOrderHandler(deps.Policy, deps.Executor)
		api.HandleFunc("/orders", orderHandler.CreateOrder).Methods("POST")
	}

	// Position routes
	if deps.Positions != nil {
		positionHandler := handlers.NewPositionHandler(deps.Positions, deps.JournalService)
		api.HandleFunc("/positions", positionHandler.GetPositions).Methods("GET")
		api.HandleFunc("/positions/{symbol}/close", positionHandler.ClosePosition).Methods("POST")
	}

	// Auto trading routes
	if deps.Auto != nil {
		autoHandler := handlers.NewAutoHandler(deps.Auto)
		api.HandleFunc("/auto/start", autoHandler.Start).Methods("POST")
		api.HandleFunc("/auto/stop", autoHandler.Stop).Methods("POST")
		api.HandleFunc("/auto/status", autoHandler.Status).Methods("GET")
	}

	// Journal routes
	if deps.JournalService != nil {
		journalHandler := handlers.NewJournalHandler(deps.JournalService)
		api.HandleFunc("/journal", journalHandler.GetJournal).Methods("GET")
		api.HandleFunc("/journal/summary", journalHandler.GetSummary).Methods("GET")
	}

	// Settings routes. Мутации защищаются паролем терминала
	if deps.SettingsService != nil {
		settingsHandler := handlers.NewSettingsHandler(deps.SettingsService)
		guard := middleware.Passphrase(deps.SettingsPassHash)
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.Handle("/settings", guard(http.HandlerFunc(settingsHandler.UpdateSettings))).Methods("PUT")
		api.Handle("/settings/auto", guard(http.HandlerFunc(settingsHandler.UpdateAutoTrade))).Methods("PUT")
		api.Handle("/settings/credentials", guard(http.HandlerFunc(settingsHandler.SaveCredentials))).Methods("PUT")
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
