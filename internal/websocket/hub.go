package websocket

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket соединениями терминала.
//
// Центральный канал real-time данных для UI: обновления позиций,
// уведомления движка, состояния сигналов, записи журнала и баланс.
// Медленные клиенты отключаются, чтобы не тормозить broadcast.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	log *zap.Logger
	mu  sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			// Список клиентов копируется под коротким RLock,
			// отправка идёт без блокировки
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("removed slow ws clients",
					zap.Int("removed", len(toRemove)),
					zap.Int("total", total))
			}
		}
	}
}

// ClientCount возвращает число подключённых клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast сериализует сообщение и отправляет всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("ws broadcast marshal failed", zap.Error(err))
		return
	}
	h.broadcast <- data
}

// BroadcastPosition отправляет обновление позиции
func (h *Hub) BroadcastPosition(pos *exchange.Position) {
	h.Broadcast(&PositionUpdateMessage{
		Type:      MessageTypePositionUpdate,
		Timestamp: time.Now(),
		Data:      pos,
	})
}

// BroadcastNotification отправляет уведомление движка
func (h *Hub) BroadcastNotification(n models.Notification) {
	h.Broadcast(&NotificationMessage{
		Type:      MessageTypeNotification,
		Timestamp: time.Now(),
		Data:      n,
	})
}

// BroadcastSignal отправляет состояние конфлюенса
func (h *Hub) BroadcastSignal(result *models.ConfluenceResult) {
	h.Broadcast(&SignalMessage{
		Type:      MessageTypeSignal,
		Timestamp: time.Now(),
		Data:      result,
	})
}

// BroadcastTrade отправляет закрытую сделку в журнал UI
func (h *Hub) BroadcastTrade(trade *models.TradeRecord) {
	h.Broadcast(&TradeMessage{
		Type:      MessageTypeTrade,
		Timestamp: time.Now(),
		Data:      trade,
	})
}

// BroadcastTicker отправляет обновление цены
func (h *Hub) BroadcastTicker(t *exchange.Ticker) {
	h.Broadcast(&TickerMessage{
		Type:      MessageTypeTicker,
		Timestamp: time.Now(),
		Data:      t,
	})
}

// BroadcastBalance отправляет обновление баланса
func (h *Hub) BroadcastBalance(network string, balance float64) {
	h.Broadcast(&BalanceUpdateMessage{
		Type:      MessageTypeBalanceUpdate,
		Timestamp: time.Now(),
		Network:   network,
		Balance:   balance,
	})
}
