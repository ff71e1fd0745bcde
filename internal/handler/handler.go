// Package handler принимает обновления мессенджера по HTTP и передаёт их боту.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/gatedmart/internal/bot"
	"github.com/mmeshcher/gatedmart/internal/middleware"
)

const maxUpdateSize = 1 << 20

// EventHandler определяет контракт обработчика событий чата.
type EventHandler interface {
	Handle(ctx context.Context, ev bot.Event) error
}

// Handler реализует HTTP-обработчики вебхука.
type Handler struct {
	events EventHandler
	logger *zap.Logger
	auth   *middleware.WebhookAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(events EventHandler, logger *zap.Logger, auth *middleware.WebhookAuth) *Handler {
	return &Handler{
		events: events,
		logger: logger,
		auth:   auth,
	}
}

// Webhook принимает одно обновление. Ошибка хранилища возвращается кодом 500,
// чтобы мессенджер повторил доставку.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var u update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateSize)).Decode(&u); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ev, ok := u.toEvent()
	if !ok {
		h.logger.Debug("update skipped", zap.Int64("update_id", u.UpdateID))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.events.Handle(r.Context(), ev); err != nil {
		h.logger.Error("handle update error", zap.Int64("update_id", u.UpdateID), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Health отвечает 200, пока процесс принимает запросы.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
