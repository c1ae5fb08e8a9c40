package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/internal/service"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/validation"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/logger"
)

// timerView строка страницы таймеров. Даты в RFC3339, пустая строка означает отсутствие.
type timerView struct {
	ID             int64
	Type           string
	Label          string
	Title          string
	Start          string
	Target         string
	Paused         bool
	PausedDuration int64
	PauseStart     string
	ModeLabel      string
	Display        string
	Urgent         bool
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func (s *Server) newTimerView(t *models.Timer) timerView {
	v := timerView{
		ID:             t.ID,
		Type:           string(t.Mode),
		Label:          t.Label,
		Title:          t.DisplayLabel(),
		Start:          t.Start.Format(time.RFC3339),
		Target:         formatOptional(t.Target),
		Paused:         t.Paused,
		PausedDuration: t.PausedSeconds,
		PauseStart:     formatOptional(t.PauseStart),
		ModeLabel:      t.Mode.Label(),
	}
	if d, ok := s.timers.Display(t); ok {
		v.Display = d.String()
		v.Urgent = d.Urgent
	}
	return v
}

// handleTimersPage отдает HTML страницу с разметкой снимков для клиента отображения
func (s *Server) handleTimersPage(w http.ResponseWriter, r *http.Request) {
	list, err := s.timers.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]timerView, 0, len(list))
	for _, t := range list {
		views = append(views, s.newTimerView(t))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.ExecuteTemplate(w, "timers.html", struct{ Timers []timerView }{views}); err != nil {
		s.logger.Error("Failed to render timers page", logger.Error(err))
	}
}

func (s *Server) handleListTimers(w http.ResponseWriter, r *http.Request) {
	list, err := s.timers.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	now := s.clock.Now()
	out := make([]api.Timer, 0, len(list))
	for _, t := range list {
		out = append(out, api.NewTimer(t, now))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTimer(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateTimerID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.timers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewTimer(t, s.clock.Now()))
}

// timerRequest тело создания и изменения таймера. Даты принимаются
// в RFC3339 или в формате поля datetime-local.
type timerRequest struct {
	Label          *string `json:"label"`
	TimerType      string  `json:"timer_type"`
	StartDatetime  string  `json:"start_datetime"`
	TargetDatetime string  `json:"target_datetime"`
}

func (s *Server) optionalDateTime(v string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := validation.ParseDateTime(v, s.location)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) handleCreateTimer(w http.ResponseWriter, r *http.Request) {
	var req timerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	start, err := s.optionalDateTime(req.StartDatetime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := s.optionalDateTime(req.TargetDatetime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	params := service.CreateTimerParams{
		Type:   req.TimerType,
		Start:  start,
		Target: target,
	}
	if req.Label != nil {
		params.Label = *req.Label
	}

	t, err := s.timers.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.securityLogger.LogUserAction(r, "timer_create", map[string]interface{}{"timer_id": t.ID})
	s.writeJSON(w, http.StatusCreated, api.ControlResponse{
		Success: true,
		Timer:   api.NewTimer(t, s.clock.Now()).Payload(),
	})
}

// handleTimerControl выполняет действие над таймером: pause, resume, reset, delete, update
func (s *Server) handleTimerControl(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateTimerID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	action := strings.ToLower(r.PathValue("action"))

	var t *models.Timer
	switch action {
	case "pause":
		t, err = s.timers.Pause(ctx, id)
	case "resume":
		t, err = s.timers.Resume(ctx, id)
	case "reset":
		t, err = s.timers.Reset(ctx, id)
	case "delete":
		if err := s.timers.Delete(ctx, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.securityLogger.LogUserAction(r, "timer_delete", map[string]interface{}{"timer_id": id})
		s.writeJSON(w, http.StatusOK, api.ControlResponse{Success: true})
		return
	case "update":
		t, err = s.updateTimer(w, r, id)
	default:
		err = errors.Invalid("неизвестное действие").WithContext(map[string]interface{}{"action": action})
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.securityLogger.LogUserAction(r, "timer_"+action, map[string]interface{}{"timer_id": id})
	s.writeJSON(w, http.StatusOK, api.ControlResponse{
		Success: true,
		Timer:   api.NewTimer(t, s.clock.Now()).Payload(),
	})
}

func (s *Server) updateTimer(w http.ResponseWriter, r *http.Request, id int64) (*models.Timer, error) {
	var req timerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	target, err := s.optionalDateTime(req.TargetDatetime)
	if err != nil {
		return nil, err
	}
	return s.timers.Update(r.Context(), id, service.UpdateTimerParams{
		Label:  req.Label,
		Target: target,
	})
}
