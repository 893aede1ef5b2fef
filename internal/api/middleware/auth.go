package middleware

import (
	"net/http"

	"tradeterm/pkg/crypto"
)

// Passphrase - middleware для защиты мутаций настроек паролем терминала.
//
// Терминал локальный и однопользовательский, сессий и токенов нет:
// изменение политики, сети и ключей API подтверждается паролем,
// переданным в заголовке X-Terminal-Passphrase. Пароль проверяется
// против bcrypt-хеша из SETTINGS_PASSWORD_HASH.
//
// Пустой хеш отключает проверку: пароль - опциональная защита
// от случайного переключения на mainnet, не замена auth.
//
// Использование:
//
//	guard := middleware.Passphrase(cfg.Security.SettingsPassHash)
//	api.Handle("/settings", guard(handler)).Methods("PUT")
func Passphrase(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				next.ServeHTTP(w, r)
				return
			}

			pass := r.Header.Get("X-Terminal-Passphrase")
			if err := crypto.VerifyPassword(pass, hash); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": "invalid passphrase"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
