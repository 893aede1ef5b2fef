package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradeterm/internal/models"
)

// ============================================================
// SettingsRepository Tests
// ============================================================

func TestNewSettingsRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)
	if repo == nil {
		t.Fatal("NewSettingsRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestSettingsRepositoryGetPolicy(t *testing.T) {
	now := time.Now()
	override := 15

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    models.PolicyConfig
		expectError bool
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"network", "strict_mode", "leverage_default", "leverage_override", "allow_signal_close", "risk_pct", "updated_at"}).
					AddRow("mainnet", true, 10, &override, false, 2.0, now)
				mock.ExpectQuery(`SELECT .+ FROM settings WHERE id = 1`).
					WillReturnRows(rows)
			},
			expected: models.PolicyConfig{
				Network:         models.NetworkMainnet,
				StrictMode:      true,
				LeverageDefault: 10,
				RiskPct:         2.0,
			},
		},
		{
			name: "not found - creates default",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM settings WHERE id = 1`).
					WillReturnError(sql.ErrNoRows)
				autoJSON, _ := json.Marshal(models.DefaultAutoTradeSettings())
				mock.ExpectExec(`INSERT INTO settings`).
					WithArgs("demo", true, 10, nil, false, 2.0, autoJSON, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			expected: models.PolicyConfig{
				Network:         models.NetworkDemo,
				StrictMode:      true,
				LeverageDefault: 10,
				RiskPct:         2.0,
			},
		},
		{
			name: "query error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM settings WHERE id = 1`).
					WillReturnError(errors.New("connection refused"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)
			repo := NewSettingsRepository(db)

			policy, err := repo.GetPolicy()
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if policy.Network != tt.expected.Network {
				t.Errorf("network: expected %s, got %s", tt.expected.Network, policy.Network)
			}
			if policy.LeverageDefault != tt.expected.LeverageDefault {
				t.Errorf("leverage: expected %d, got %d", tt.expected.LeverageDefault, policy.LeverageDefault)
			}
		})
	}
}

func TestSettingsRepositoryUpdatePolicy(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)

	policy := models.DefaultPolicy()
	policy.Network = models.NetworkMainnet

	mock.ExpectExec(`UPDATE settings SET`).
		WithArgs(policy.Network, policy.StrictMode, policy.LeverageDefault, nil,
			policy.AllowSignalClose, policy.RiskPct, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdatePolicy(&policy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSettingsRepositoryUpdatePolicyNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)
	policy := models.DefaultPolicy()

	mock.ExpectExec(`UPDATE settings SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdatePolicy(&policy); !errors.Is(err, ErrSettingsNotFound) {
		t.Errorf("expected ErrSettingsNotFound, got %v", err)
	}
}

func TestSettingsRepositoryGetAutoTrade(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)

	saved := models.DefaultAutoTradeSettings()
	saved.Symbols = []string{"BTCUSDT"}
	autoJSON, _ := json.Marshal(saved)

	mock.ExpectQuery(`SELECT auto_trade FROM settings WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"auto_trade"}).AddRow(autoJSON))

	auto, err := repo.GetAutoTrade()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(auto.Symbols) != 1 || auto.Symbols[0] != "BTCUSDT" {
		t.Errorf("unexpected symbols: %v", auto.Symbols)
	}
}

func TestSettingsRepositoryGetAutoTradeEmptyFallsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT auto_trade FROM settings WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"auto_trade"}).AddRow([]byte{}))

	auto, err := repo.GetAutoTrade()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auto.MaxPositions != 2 {
		t.Errorf("expected default settings, got %+v", auto)
	}
}

// ============================================================
// API Credentials Tests
// ============================================================

func TestSettingsRepositoryGetCredentials(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"network", "api_key", "api_secret_enc", "updated_at"}).
		AddRow("demo", "key123", "ciphertext", now)
	mock.ExpectQuery(`SELECT .+ FROM api_credentials WHERE network = \$1`).
		WithArgs("demo").
		WillReturnRows(rows)

	creds, err := repo.GetCredentials("demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.APIKey != "key123" || creds.APISecretCipher != "ciphertext" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestSettingsRepositoryGetCredentialsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM api_credentials WHERE network = \$1`).
		WithArgs("mainnet").
		WillReturnRows(sqlmock.NewRows([]string{"network", "api_key", "api_secret_enc", "updated_at"}))

	_, err = repo.GetCredentials("mainnet")
	if !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestSettingsRepositoryUpsertCredentials(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsRepository(db)

	creds := &models.APICredentials{
		Network:         "demo",
		APIKey:          "key123",
		APISecretCipher: "ciphertext",
	}

	mock.ExpectExec(`INSERT INTO api_credentials`).
		WithArgs(creds.Network, creds.APIKey, creds.APISecretCipher, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.UpsertCredentials(creds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be filled")
	}
}
