package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/servicedesk/internal/bot/keyboard"
	"github.com/region23/servicedesk/internal/config"
	"github.com/region23/servicedesk/internal/middleware"
	"github.com/region23/servicedesk/internal/scheduler"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/logger"
	"github.com/region23/servicedesk/pkg/metrics"
)

// Messenger подмножество Bot API, которое использует сервис. *bot.Bot ему соответствует.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// TimerController операции над таймерами, доступные из бота
type TimerController interface {
	List(ctx context.Context) ([]*models.Timer, error)
	Get(ctx context.Context, id int64) (*models.Timer, error)
	Pause(ctx context.Context, id int64) (*models.Timer, error)
	Resume(ctx context.Context, id int64) (*models.Timer, error)
	Reset(ctx context.Context, id int64) (*models.Timer, error)
	Delete(ctx context.Context, id int64) error
	Display(t *models.Timer) (timer.Display, bool)
}

var (
	_ Messenger                    = (*bot.Bot)(nil)
	_ scheduler.NotificationSender = (*Service)(nil)
)

// Service представляет основной сервис Telegram бота
type Service struct {
	api     Messenger
	timers  TimerController
	config  *config.TelegramConfig
	limiter *middleware.RateLimiter
	logger  *logger.Logger
}

// NewService создает новый экземпляр сервиса бота. limiter может быть nil.
func NewService(
	api Messenger,
	timers TimerController,
	cfg *config.TelegramConfig,
	limiter *middleware.RateLimiter,
	log *logger.Logger,
) *Service {
	return &Service{
		api:     api,
		timers:  timers,
		config:  cfg,
		limiter: limiter,
		logger:  log,
	}
}

// Logger возвращает логгер сервиса
func (s *Service) Logger() *logger.Logger {
	return s.logger
}

// IsAdmin проверяет, может ли чат управлять таймерами
func (s *Service) IsAdmin(chatID int64) bool {
	return s.config.IsAdmin(chatID)
}

// Allow проверяет лимит сообщений для чата
func (s *Service) Allow(chatID int64) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.AllowChat(chatID)
}

// ListTimers возвращает все таймеры
func (s *Service) ListTimers(ctx context.Context) ([]*models.Timer, error) {
	return s.timers.List(ctx)
}

// GetTimer получает таймер по ID
func (s *Service) GetTimer(ctx context.Context, id int64) (*models.Timer, error) {
	return s.timers.Get(ctx, id)
}

// ControlTimer выполняет действие над таймером. Для удаления возвращает nil таймер.
func (s *Service) ControlTimer(ctx context.Context, action string, id int64) (*models.Timer, error) {
	switch action {
	case keyboard.ActionPause:
		return s.timers.Pause(ctx, id)
	case keyboard.ActionResume:
		return s.timers.Resume(ctx, id)
	case keyboard.ActionReset:
		return s.timers.Reset(ctx, id)
	case keyboard.ActionDelete:
		return nil, s.timers.Delete(ctx, id)
	}
	return nil, errors.Invalid("неизвестное действие " + action)
}

// FormatTimer форматирует строку таймера для сообщения
func (s *Service) FormatTimer(t *models.Timer) string {
	var b strings.Builder
	b.WriteString(t.DisplayLabel())

	d, ok := s.timers.Display(t)
	if !ok {
		b.WriteString("\nнекорректные данные таймера")
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s: %s", t.Mode.Label(), d)
	if t.Paused {
		b.WriteString(" (пауза)")
	}
	if d.Urgent {
		b.WriteString(" ⚠ срочно")
	}
	return b.String()
}

// SendMessage отправляет сообщение пользователю
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup tgmodels.ReplyMarkup) error {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: replyMarkup,
	}

	_, err := s.api.SendMessage(ctx, params)
	if err != nil {
		return apiFailure("send_message", err)
	}
	return nil
}

// SendSimpleMessage отправляет простое текстовое сообщение
func (s *Service) SendSimpleMessage(ctx context.Context, chatID int64, text string) error {
	return s.SendMessage(ctx, chatID, text, nil)
}

// SendError отправляет сообщение об ошибке пользователю
func (s *Service) SendError(ctx context.Context, chatID int64, message string) {
	if err := s.SendSimpleMessage(ctx, chatID, message); err != nil {
		s.logger.Warn("Failed to send error message",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}

// EditMessage заменяет текст и клавиатуру сообщения
func (s *Service) EditMessage(ctx context.Context, chatID int64, messageID int, text string, replyMarkup tgmodels.ReplyMarkup) error {
	params := &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: replyMarkup,
	}

	_, err := s.api.EditMessageText(ctx, params)
	if err != nil {
		return apiFailure("edit_message", err)
	}
	return nil
}

// AnswerCallbackQuery отвечает на callback query
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	params := &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}

	_, err := s.api.AnswerCallbackQuery(ctx, params)
	if err != nil {
		return apiFailure("answer_callback", err)
	}
	return nil
}

// apiFailure учитывает сбой вызова Bot API
func apiFailure(method string, err error) error {
	metrics.RecordError("telegram", method)
	return errors.ErrTelegramAPI.WithError(err)
}

// SendNotification отправляет уведомление в чат
func (s *Service) SendNotification(ctx context.Context, chatID int64, message string) error {
	return s.SendSimpleMessage(ctx, chatID, message)
}

// SendDeadline рассылает администраторам уведомление об истечении обратного таймера
func (s *Service) SendDeadline(ctx context.Context, t *models.Timer) error {
	if len(s.config.AdminIDs) == 0 {
		return nil
	}

	message := fmt.Sprintf("Время вышло: %s", t.DisplayLabel())
	if t.Target != nil {
		message += fmt.Sprintf("\nЦелевая дата: %s", t.Target.Format("02.01.2006 15:04"))
	}

	var failed []error
	for _, chatID := range s.config.AdminIDs {
		if err := s.SendNotification(ctx, chatID, message); err != nil {
			s.logger.Warn("Failed to notify admin",
				logger.Int64("chat_id", chatID),
				logger.Int64("timer_id", t.ID),
				logger.Error(err),
			)
			failed = append(failed, err)
		}
	}

	if len(failed) == len(s.config.AdminIDs) {
		return fmt.Errorf("deadline notification not delivered: %w", failed[0])
	}
	return nil
}
