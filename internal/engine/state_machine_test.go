package engine

import (
	"testing"

	"tradeterm/internal/models"
)

// TestCanTransition_ValidTransitions проверяет все валидные переходы между состояниями
func TestCanTransition_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		// UNPROTECTED → NATIVE (embedded SL/TP accepted with the order)
		{
			name: "UNPROTECTED → NATIVE (embedded protection accepted)",
			from: models.ProtectionUnprotected,
			to:   models.ProtectionNative,
			want: true,
		},
		// UNPROTECTED → TRADING_STOP (fallback attach succeeded)
		{
			name: "UNPROTECTED → TRADING_STOP (fallback attach)",
			from: models.ProtectionUnprotected,
			to:   models.ProtectionTradingStop,
			want: true,
		},
		// UNPROTECTED → FAILED (emergency close)
		{
			name: "UNPROTECTED → FAILED (emergency close)",
			from: models.ProtectionUnprotected,
			to:   models.ProtectionFailed,
			want: true,
		},

		// FAILED → UNPROTECTED (fresh reconciliation retry)
		{
			name: "FAILED → UNPROTECTED (fresh reconciliation)",
			from: models.ProtectionFailed,
			to:   models.ProtectionUnprotected,
			want: true,
		},

		// Protected states are terminal
		{
			name: "NATIVE → UNPROTECTED rejected",
			from: models.ProtectionNative,
			to:   models.ProtectionUnprotected,
			want: false,
		},
		{
			name: "NATIVE → TRADING_STOP rejected",
			from: models.ProtectionNative,
			to:   models.ProtectionTradingStop,
			want: false,
		},
		{
			name: "TRADING_STOP → FAILED rejected",
			from: models.ProtectionTradingStop,
			to:   models.ProtectionFailed,
			want: false,
		},

		// FAILED never jumps straight to a protected state
		{
			name: "FAILED → NATIVE rejected",
			from: models.ProtectionFailed,
			to:   models.ProtectionNative,
			want: false,
		},
		{
			name: "FAILED → TRADING_STOP rejected",
			from: models.ProtectionFailed,
			to:   models.ProtectionTradingStop,
			want: false,
		},

		// Unknown state
		{
			name: "unknown state rejected",
			from: "LIMBO",
			to:   models.ProtectionNative,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStateInfoCoversAllStates(t *testing.T) {
	states := []string{
		models.ProtectionUnprotected,
		models.ProtectionNative,
		models.ProtectionTradingStop,
		models.ProtectionFailed,
	}

	for _, s := range states {
		if StateInfo(s) == "Неизвестное состояние" {
			t.Errorf("StateInfo(%q) has no description", s)
		}
	}
}
