package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError представляет ошибку приложения с кодом и контекстом
type AppError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, чтобы копии из WithContext/WithError
// совпадали с исходными sentinel-значениями
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(ctx interface{}) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Context: ctx,
	}
}

// WithError добавляет underlying ошибку
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		Context: e.Context,
	}
}

// Предопределенные ошибки
var (
	// Ошибки таймеров
	ErrTimerNotFound = &AppError{
		Code:    "TIMER_NOT_FOUND",
		Message: "таймер не найден",
	}

	ErrTimerAlreadyPaused = &AppError{
		Code:    "TIMER_ALREADY_PAUSED",
		Message: "таймер уже остановлен",
	}

	ErrTimerNotPaused = &AppError{
		Code:    "TIMER_NOT_PAUSED",
		Message: "таймер не остановлен",
	}

	ErrInvalidTimerType = &AppError{
		Code:    "INVALID_TIMER_TYPE",
		Message: "неверный тип таймера",
	}

	ErrTargetRequired = &AppError{
		Code:    "TARGET_REQUIRED",
		Message: "для обратного таймера нужна целевая дата",
	}

	ErrTargetInPast = &AppError{
		Code:    "TARGET_IN_PAST",
		Message: "целевая дата должна быть в будущем",
	}

	ErrInvalidTimerID = &AppError{
		Code:    "INVALID_TIMER_ID",
		Message: "некорректный ID таймера",
	}

	// Ошибки задач
	ErrTaskNotFound = &AppError{
		Code:    "TASK_NOT_FOUND",
		Message: "задача не найдена",
	}

	ErrEmptyTitle = &AppError{
		Code:    "EMPTY_TITLE",
		Message: "название задачи не может быть пустым",
	}

	ErrInvalidRecurrence = &AppError{
		Code:    "INVALID_RECURRENCE",
		Message: "неверный тип повторения",
	}

	ErrInvalidTaskID = &AppError{
		Code:    "INVALID_TASK_ID",
		Message: "некорректный ID задачи",
	}

	ErrInvalidDate = &AppError{
		Code:    "INVALID_DATE",
		Message: "некорректная дата",
	}

	ErrInvalidBulkAction = &AppError{
		Code:    "INVALID_BULK_ACTION",
		Message: "неизвестное массовое действие",
	}

	ErrInvalidInput = &AppError{
		Code:    "INVALID_INPUT",
		Message: "некорректные данные",
	}

	// Системные ошибки
	ErrDatabase = &AppError{
		Code:    "DATABASE",
		Message: "ошибка базы данных",
	}

	ErrConfigurationInvalid = &AppError{
		Code:    "CONFIGURATION_INVALID",
		Message: "некорректная конфигурация",
	}

	ErrTelegramAPI = &AppError{
		Code:    "TELEGRAM_API",
		Message: "ошибка Telegram API",
	}

	ErrAccessDenied = &AppError{
		Code:    "ACCESS_DENIED",
		Message: "доступ запрещен",
	}
)

// NewAppError создает новую ошибку приложения
func NewAppError(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Invalid создает ошибку валидации с понятным пользователю сообщением
func Invalid(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidInput.Code,
		Message: message,
	}
}

// Wrap оборачивает обычную ошибку в AppError
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetAppError извлекает AppError из цепочки ошибок
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is повторяет errors.Is стандартной библиотеки
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// HTTPStatus возвращает HTTP статус для ошибки
func HTTPStatus(err error) int {
	appErr, ok := GetAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case ErrTimerNotFound.Code, ErrTaskNotFound.Code:
		return http.StatusNotFound
	case ErrTimerAlreadyPaused.Code, ErrTimerNotPaused.Code:
		return http.StatusConflict
	case ErrInvalidTimerType.Code, ErrTargetRequired.Code, ErrTargetInPast.Code,
		ErrInvalidTimerID.Code, ErrEmptyTitle.Code, ErrInvalidRecurrence.Code,
		ErrInvalidTaskID.Code, ErrInvalidDate.Code, ErrInvalidBulkAction.Code, ErrInvalidInput.Code:
		return http.StatusBadRequest
	case ErrAccessDenied.Code:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage возвращает сообщение, которое можно показать пользователю
func UserMessage(err error) string {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Message
	}
	return "внутренняя ошибка сервера"
}
