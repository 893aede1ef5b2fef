package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// ============ PositionHandler Tests ============

func TestPositionHandler_GetPositions(t *testing.T) {
	t.Run("returns open positions", func(t *testing.T) {
		positions := &mockPositions{positions: []*exchange.Position{
			{Symbol: "BTCUSDT", Side: "long", Size: 0.01, EntryPrice: 50000, StopLoss: 49000, TakeProfit: 52000},
		}}
		handler := NewPositionHandler(positions, &mockJournal{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response []*exchange.Position
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response) != 1 || response[0].Symbol != "BTCUSDT" {
			t.Errorf("unexpected positions: %+v", response)
		}
	})

	t.Run("returns empty array when no positions", func(t *testing.T) {
		handler := NewPositionHandler(&mockPositions{}, &mockJournal{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if body := w.Body.String(); body != "[]\n" {
			t.Errorf("expected empty json array, got %q", body)
		}
	})

	t.Run("returns 502 on exchange error", func(t *testing.T) {
		handler := NewPositionHandler(&mockPositions{listErr: ErrMockExchange}, &mockJournal{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusBadGateway {
			t.Errorf("expected status %d, got %d", http.StatusBadGateway, w.Code)
		}
	})
}

func TestPositionHandler_ClosePosition(t *testing.T) {
	closeRequest := func(symbol string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/positions/"+symbol+"/close", nil)
		return mux.SetURLVars(req, map[string]string{"symbol": symbol})
	}

	t.Run("closes position and records journal entry", func(t *testing.T) {
		positions := &mockPositions{positions: []*exchange.Position{
			{Symbol: "BTCUSDT", Side: "long", Size: 0.01, EntryPrice: 50000, MarkPrice: 51000, Leverage: 10, UnrealizedPnl: 10},
		}}
		journal := &mockJournal{}
		handler := NewPositionHandler(positions, journal)

		w := httptest.NewRecorder()
		handler.ClosePosition(w, closeRequest("BTCUSDT"))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		if len(positions.closeCalls) != 1 || positions.closeCalls[0] != "BTCUSDT" {
			t.Errorf("expected one close call for BTCUSDT, got %v", positions.closeCalls)
		}

		if len(journal.recorded) != 1 {
			t.Fatalf("expected one journal record, got %d", len(journal.recorded))
		}
		trade := journal.recorded[0]
		if trade.CloseReason != models.CloseReasonManual {
			t.Errorf("expected close reason %s, got %s", models.CloseReasonManual, trade.CloseReason)
		}
		if trade.ExitPrice != 51000 {
			t.Errorf("expected exit price from mark price 51000, got %f", trade.ExitPrice)
		}
	})

	t.Run("returns 404 when position not found", func(t *testing.T) {
		handler := NewPositionHandler(&mockPositions{}, &mockJournal{})

		w := httptest.NewRecorder()
		handler.ClosePosition(w, closeRequest("ETHUSDT"))

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("returns 502 on close failure", func(t *testing.T) {
		positions := &mockPositions{
			positions: []*exchange.Position{{Symbol: "BTCUSDT", Side: "long", Size: 0.01}},
			closeErr:  ErrMockExchange,
		}
		journal := &mockJournal{}
		handler := NewPositionHandler(positions, journal)

		w := httptest.NewRecorder()
		handler.ClosePosition(w, closeRequest("BTCUSDT"))

		if w.Code != http.StatusBadGateway {
			t.Errorf("expected status %d, got %d", http.StatusBadGateway, w.Code)
		}
		if len(journal.recorded) != 0 {
			t.Error("journal must not be written when close fails")
		}
	})
}
