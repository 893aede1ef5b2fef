package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradeterm/internal/models"
	"tradeterm/internal/repository"
)

// ============ JournalHandler Tests ============

func TestJournalHandler_GetJournal(t *testing.T) {
	journal := &mockJournal{trades: []*models.TradeRecord{
		{ID: 1, Symbol: "BTCUSDT", Side: "long", Pnl: 25.5, CloseReason: models.CloseReasonTakeProfit},
		{ID: 2, Symbol: "ETHUSDT", Side: "short", Pnl: -10.0, CloseReason: models.CloseReasonStopLoss},
	}}

	t.Run("returns all records", func(t *testing.T) {
		handler := NewJournalHandler(journal)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil)
		w := httptest.NewRecorder()

		handler.GetJournal(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response []*models.TradeRecord
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response) != 2 {
			t.Errorf("expected 2 records, got %d", len(response))
		}
	})

	t.Run("filters by symbol", func(t *testing.T) {
		handler := NewJournalHandler(journal)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?symbol=ETHUSDT", nil)
		w := httptest.NewRecorder()

		handler.GetJournal(w, req)

		var response []*models.TradeRecord
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response) != 1 || response[0].Symbol != "ETHUSDT" {
			t.Errorf("expected one ETHUSDT record, got %+v", response)
		}
	})

	t.Run("rejects invalid limit", func(t *testing.T) {
		handler := NewJournalHandler(journal)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?limit=abc", nil)
		w := httptest.NewRecorder()

		handler.GetJournal(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("returns empty array when journal empty", func(t *testing.T) {
		handler := NewJournalHandler(&mockJournal{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil)
		w := httptest.NewRecorder()

		handler.GetJournal(w, req)

		if body := w.Body.String(); body != "[]\n" {
			t.Errorf("expected empty json array, got %q", body)
		}
	})
}

func TestJournalHandler_GetSummary(t *testing.T) {
	t.Run("returns summary for period", func(t *testing.T) {
		journal := &mockJournal{summary: &repository.TradeSummary{
			Total: 10, Wins: 6, Losses: 4, TotalPnl: 120.5, WinRate: 60,
		}}
		handler := NewJournalHandler(journal)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal/summary?period=week", nil)
		w := httptest.NewRecorder()

		handler.GetSummary(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response repository.TradeSummary
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 10 || response.WinRate != 60 {
			t.Errorf("unexpected summary: %+v", response)
		}
	})

	t.Run("rejects unknown period", func(t *testing.T) {
		handler := NewJournalHandler(&mockJournal{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal/summary?period=year", nil)
		w := httptest.NewRecorder()

		handler.GetSummary(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}
