package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/region23/servicedesk/pkg/errors"
)

// maxWebhookBody лимит тела webhook запроса
const maxWebhookBody = 4 << 20

// validateWebhookRequest разбирает и проверяет обновление от Telegram
func validateWebhookRequest(w http.ResponseWriter, r *http.Request) (*models.Update, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return nil, errors.Invalid("Content-Type должен быть application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var update models.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, errors.Invalid("некорректный JSON в запросе").WithError(err)
	}

	if update.ID <= 0 {
		return nil, errors.Invalid("некорректный update_id")
	}
	if update.Message == nil && update.CallbackQuery == nil {
		return nil, errors.Invalid("update не содержит ни message, ни callback_query")
	}
	if update.Message != nil && update.Message.From != nil && update.Message.From.IsBot {
		return nil, errors.Invalid("сообщения от ботов не принимаются")
	}
	if update.CallbackQuery != nil && update.CallbackQuery.From.IsBot {
		return nil, errors.Invalid("сообщения от ботов не принимаются")
	}

	return &update, nil
}

// handleWebhook принимает обновления Telegram и передает их диспетчеру бота
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.verifyWebhookSecret(r) {
		s.securityLogger.LogFailedAuth(r, "invalid webhook secret")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	update, err := validateWebhookRequest(w, r)
	if err != nil {
		s.securityLogger.LogValidationError(r, err)
		http.Error(w, errors.UserMessage(err), http.StatusBadRequest)
		return
	}

	// Telegram повторяет доставку, пока не получит 200, поэтому ответ не ждет обработки
	// дольше таймаута запроса
	ctx, cancel := contextWithTimeout(r, s.config.Timers.RequestTimeout)
	defer cancel()

	s.dispatcher.HandleUpdate(ctx, s.telegramBot, update)
	w.WriteHeader(http.StatusOK)
}
