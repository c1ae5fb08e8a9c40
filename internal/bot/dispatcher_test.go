package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/region23/servicedesk/internal/bot/keyboard"
	botservice "github.com/region23/servicedesk/internal/bot/service"
	"github.com/region23/servicedesk/internal/config"
	timersvc "github.com/region23/servicedesk/internal/service"
	storagemodels "github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/testutils"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/metrics"
)

const adminChat = 100

type edit struct {
	text   string
	markup models.ReplyMarkup
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []edit
	edits   []edit
	answers []string
	sendErr error
}

func (f *fakeMessenger) SendMessage(ctx context.Context, p *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, edit{text: p.Text, markup: p.ReplyMarkup})
	return &models.Message{}, nil
}

func (f *fakeMessenger) EditMessageText(ctx context.Context, p *tgbot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{text: p.Text, markup: p.ReplyMarkup})
	return &models.Message{}, nil
}

func (f *fakeMessenger) AnswerCallbackQuery(ctx context.Context, p *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, p.Text)
	return true, nil
}

func (f *fakeMessenger) lastEdit(t *testing.T) edit {
	t.Helper()
	if len(f.edits) == 0 {
		t.Fatal("message was not edited")
	}
	return f.edits[len(f.edits)-1]
}

type fixture struct {
	dispatcher *Dispatcher
	api        *fakeMessenger
	timers     *timersvc.TimerService
	clock      *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	timers := timersvc.NewTimerService(testutils.SetupTestDB(t), clock, testutils.SetupTestLogger())
	api := &fakeMessenger{}
	cfg := &config.TelegramConfig{AdminIDs: []int64{adminChat}}
	svc := botservice.NewService(api, timers, cfg, nil, testutils.SetupTestLogger())

	return &fixture{
		dispatcher: NewDispatcher(svc),
		api:        api,
		timers:     timers,
		clock:      clock,
	}
}

func (f *fixture) createTimer(t *testing.T, label string) *storagemodels.Timer {
	t.Helper()
	tm, err := f.timers.Create(testutils.TestContext(t), timersvc.CreateTimerParams{Label: label, Type: "FORWARD"})
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func messageUpdate(chatID int64, text string) *models.Update {
	return &models.Update{
		ID:      1,
		Message: &models.Message{ID: 1, Chat: models.Chat{ID: chatID}, Text: text},
	}
}

func callbackUpdate(chatID int64, data string) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "q",
			From: models.User{ID: chatID},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 7, Chat: models.Chat{ID: chatID}},
			},
		},
	}
}

func callbackData(t *testing.T, markup models.ReplyMarkup) []string {
	t.Helper()
	kb, ok := markup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("markup = %T, want inline keyboard", markup)
	}
	var data []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			data = append(data, b.CallbackData)
		}
	}
	return data
}

func TestCommand(t *testing.T) {
	tests := map[string]string{
		"/start":              "/start",
		"/timers@desk_bot":    "/timers",
		"/HELP me":            "/help",
		"привет":              "",
		"/timers@desk_bot 12": "/timers",
	}
	for in, want := range tests {
		if got := command(in); got != want {
			t.Errorf("command(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimersCommand(t *testing.T) {
	f := newFixture(t)
	ctx := testutils.TestContext(t)

	f.dispatcher.HandleUpdate(ctx, nil, messageUpdate(adminChat, "/timers"))
	if len(f.api.sent) != 1 || f.api.sent[0].text != "Нет активных таймеров" {
		t.Fatalf("sent = %+v", f.api.sent)
	}

	tm := f.createTimer(t, "Принтер 3 этаж")
	f.clock.Advance(26 * time.Hour)

	f.dispatcher.HandleUpdate(ctx, nil, messageUpdate(adminChat, "/timers"))
	card := f.api.sent[len(f.api.sent)-1]
	if !strings.Contains(card.text, "Принтер 3 этаж") || !strings.Contains(card.text, "1 д. 2 ч.") {
		t.Errorf("card text = %q", card.text)
	}
	data := callbackData(t, card.markup)
	if data[0] != keyboard.Data(keyboard.PrefixTimer, keyboard.ActionPause, tm.ID) {
		t.Errorf("first button = %q", data[0])
	}
}

func TestTimersCommand_NonAdmin(t *testing.T) {
	f := newFixture(t)
	f.createTimer(t, "скрытый")

	f.dispatcher.HandleUpdate(testutils.TestContext(t), nil, messageUpdate(5, "/timers"))
	if len(f.api.sent) != 1 || f.api.sent[0].text != "Нет доступа" {
		t.Errorf("sent = %+v", f.api.sent)
	}
}

func TestCallback_PauseResume(t *testing.T) {
	f := newFixture(t)
	ctx := testutils.TestContext(t)
	tm := f.createTimer(t, "")

	f.dispatcher.HandleUpdate(ctx, nil, callbackUpdate(adminChat, keyboard.Data(keyboard.PrefixTimer, keyboard.ActionPause, tm.ID)))

	got, err := f.timers.Get(ctx, tm.ID)
	if err != nil || !got.Paused {
		t.Fatalf("timer after pause = %+v, %v", got, err)
	}
	last := f.api.lastEdit(t)
	if !strings.Contains(last.text, "(пауза)") {
		t.Errorf("card text = %q", last.text)
	}
	if data := callbackData(t, last.markup); data[0] != keyboard.Data(keyboard.PrefixTimer, keyboard.ActionResume, tm.ID) {
		t.Errorf("toggle button = %q", data[0])
	}

	// повторная пауза отвечает ошибкой и не меняет таймер
	f.dispatcher.HandleUpdate(ctx, nil, callbackUpdate(adminChat, keyboard.Data(keyboard.PrefixTimer, keyboard.ActionPause, tm.ID)))
	if answer := f.api.answers[len(f.api.answers)-1]; answer == "Готово" || answer == "" {
		t.Errorf("answer on repeated pause = %q", answer)
	}
}

func TestCallback_DeleteNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := testutils.TestContext(t)
	tm := f.createTimer(t, "Картриджи")

	f.dispatcher.HandleUpdate(ctx, nil, callbackUpdate(adminChat, keyboard.Data(keyboard.PrefixTimer, keyboard.ActionDelete, tm.ID)))
	if _, err := f.timers.Get(ctx, tm.ID); err != nil {
		t.Fatalf("timer deleted without confirmation: %v", err)
	}
	ask := f.api.lastEdit(t)
	if !strings.HasPrefix(ask.text, "Удалить таймер?") {
		t.Errorf("confirmation text = %q", ask.text)
	}

	// отмена возвращает карточку
	f.dispatcher.HandleUpdate(ctx, nil, callbackUpdate(adminChat, keyboard.Data(keyboard.PrefixCancel, keyboard.ActionDelete, tm.ID)))
	if !strings.HasPrefix(f.api.lastEdit(t).text, "Картриджи") {
		t.Errorf("card after cancel = %q", f.api.lastEdit(t).text)
	}

	f.dispatcher.HandleUpdate(ctx, nil, callbackUpdate(adminChat, keyboard.Data(keyboard.PrefixConfirm, keyboard.ActionDelete, tm.ID)))
	if _, err := f.timers.Get(ctx, tm.ID); err == nil {
		t.Fatal("timer still exists after confirmed delete")
	}
	if f.api.lastEdit(t).text != "Таймер удален" {
		t.Errorf("final text = %q", f.api.lastEdit(t).text)
	}
}

func TestCallback_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		chatID int64
		data   string
		answer string
	}{
		{"non admin", 5, "TIMER:PAUSE:1", "Нет доступа"},
		{"garbage", adminChat, "SLOT:1", "Неверный выбор"},
		{"bad id", adminChat, "TIMER:PAUSE:-3", "Неверный выбор"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.dispatcher.HandleUpdate(testutils.TestContext(t), nil, callbackUpdate(tt.chatID, tt.data))
			if len(f.api.answers) != 1 || f.api.answers[0] != tt.answer {
				t.Errorf("answers = %v, want [%s]", f.api.answers, tt.answer)
			}
			if len(f.api.edits) != 0 {
				t.Errorf("unexpected edits %+v", f.api.edits)
			}
		})
	}
}

func TestSendDeadline(t *testing.T) {
	api := &fakeMessenger{}
	cfg := &config.TelegramConfig{AdminIDs: []int64{1, 2}}
	svc := botservice.NewService(api, nil, cfg, nil, testutils.SetupTestLogger())

	target := testutils.Epoch
	tm := &storagemodels.Timer{Label: "Ремонт"}
	tm.Target = &target

	if err := svc.SendDeadline(testutils.TestContext(t), tm); err != nil {
		t.Fatal(err)
	}
	if len(api.sent) != 2 || !strings.Contains(api.sent[0].text, "Ремонт") {
		t.Errorf("sent = %+v", api.sent)
	}
}

func TestService_SendFailureCounted(t *testing.T) {
	api := &fakeMessenger{sendErr: context.DeadlineExceeded}
	svc := botservice.NewService(api, nil, &config.TelegramConfig{}, nil, testutils.SetupTestLogger())

	counter := metrics.ErrorsTotal.WithLabelValues("telegram", "send_message")
	before := testutil.ToFloat64(counter)

	err := svc.SendSimpleMessage(testutils.TestContext(t), adminChat, "привет")
	if !errors.Is(err, errors.ErrTelegramAPI) {
		t.Fatalf("SendSimpleMessage() error = %v, want ErrTelegramAPI", err)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("telegram send errors counted = %v, want 1", got)
	}
}
