// Package middleware содержит HTTP middleware для приёма обновлений мессенджера.
package middleware

import (
	"crypto/hmac"
	"net/http"
)

// SecretTokenHeader содержит секрет, заданный при регистрации вебхука.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookAuth пропускает только запросы, подписанные секретом вебхука.
type WebhookAuth struct {
	secret []byte
}

// NewWebhookAuth создаёт проверку секрета. С пустым секретом проверка отключена.
func NewWebhookAuth(secret string) *WebhookAuth {
	return &WebhookAuth{
		secret: []byte(secret),
	}
}

// Enabled сообщает, проверяется ли секрет.
func (a *WebhookAuth) Enabled() bool {
	return len(a.secret) > 0
}

// Middleware отклоняет запросы без корректного секрета с кодом 401.
func (a *WebhookAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(SecretTokenHeader)
		if token == "" || !hmac.Equal([]byte(token), a.secret) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
