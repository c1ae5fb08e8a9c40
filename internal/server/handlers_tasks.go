package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/internal/panel"
	"github.com/region23/servicedesk/internal/service"
	"github.com/region23/servicedesk/internal/storage"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/validation"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/logger"
)

// noListName подпись группы задач без списка
const noListName = "Без списка"

type taskView struct {
	ID         int64
	Title      string
	DueDate    string
	Recurrence string
	Overdue    bool
}

type taskGroup struct {
	Name  string
	Tasks []taskView
}

// groupTasks раскладывает задачи по спискам в порядке первого появления
func (s *Server) groupTasks(tasks []*models.Task) []taskGroup {
	now := s.clock.Now()
	index := make(map[string]int)
	var groups []taskGroup

	for _, t := range tasks {
		name := t.ListName
		if name == "" {
			name = noListName
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, taskGroup{Name: name})
		}

		v := taskView{
			ID:         t.ID,
			Title:      t.Title,
			Recurrence: string(t.Recurrence),
			Overdue:    t.IsOverdue(now),
		}
		if t.DueDate != nil {
			v.DueDate = panel.LocalDate(*t.DueDate, s.location)
		}
		groups[i].Tasks = append(groups[i].Tasks, v)
	}
	return groups
}

// handleTasksPage отдает страницу невыполненных задач с формой массовых действий
func (s *Server) handleTasksPage(w http.ResponseWriter, r *http.Request) {
	completed := false
	tasks, err := s.tasks.List(r.Context(), storage.TaskFilter{
		ListName:  r.URL.Query().Get("list"),
		Completed: &completed,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data := struct {
		Groups  []taskGroup
		Message string
	}{
		Groups:  s.groupTasks(tasks),
		Message: r.URL.Query().Get("message"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "tasks.html", data); err != nil {
		s.logger.Error("Failed to render tasks page", logger.Error(err))
	}
}

// handleListTasks отдает задачи. Фильтры: list, completed, view=today|overdue.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		tasks []*models.Task
		err   error
	)
	switch q.Get("view") {
	case "today":
		tasks, err = s.tasks.Today(ctx)
	case "overdue":
		tasks, err = s.tasks.Overdue(ctx)
	case "":
		filter := storage.TaskFilter{ListName: q.Get("list")}
		if v := q.Get("completed"); v != "" {
			completed, perr := strconv.ParseBool(v)
			if perr != nil {
				s.writeError(w, r, errors.Invalid("некорректный фильтр completed"))
				return
			}
			filter.Completed = &completed
		}
		tasks, err = s.tasks.List(ctx, filter)
	default:
		err = errors.Invalid("неизвестное представление задач")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]api.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, api.NewTask(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleGetTask отдает задачу для боковой панели редактирования
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateTaskID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := panel.FromModels(s.tasks).Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

type taskRequest struct {
	Title          string `json:"title"`
	Notes          string `json:"notes"`
	DueDate        string `json:"due_date"`
	ListName       string `json:"list_name"`
	RecurrenceType string `json:"recurrence_type"`
	IsImportant    bool   `json:"is_important"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	due, err := validation.ValidateDueDate(req.DueDate, s.location)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recurrence, err := validation.ValidateRecurrence(req.RecurrenceType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.tasks.Create(r.Context(), service.CreateTaskParams{
		Title:       req.Title,
		Notes:       req.Notes,
		DueDate:     due,
		ListName:    strings.TrimSpace(req.ListName),
		Recurrence:  recurrence,
		IsImportant: req.IsImportant,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.securityLogger.LogUserAction(r, "task_create", map[string]interface{}{"task_id": task.ID})
	s.writeJSON(w, http.StatusCreated, api.NewTask(task))
}

// completeResponse ответ на выполнение задачи. Next заполнен, если повторяющаяся
// задача породила следующую.
type completeResponse struct {
	Task api.Task  `json:"task"`
	Next *api.Task `json:"next,omitempty"`
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateTaskID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, next, err := s.tasks.Complete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := completeResponse{Task: api.NewTask(task)}
	if next != nil {
		n := api.NewTask(next)
		resp.Next = &n
	}
	s.securityLogger.LogUserAction(r, "task_complete", map[string]interface{}{"task_id": id})
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUncompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateTaskID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.tasks.Uncomplete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewTask(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateTaskID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.securityLogger.LogUserAction(r, "task_delete", map[string]interface{}{"task_id": id})
	w.WriteHeader(http.StatusNoContent)
}

type bulkResponse struct {
	Success  bool   `json:"success"`
	Affected int    `json:"affected"`
	Message  string `json:"message"`
}

// handleBulk выполняет массовое действие из формы страницы задач.
// JSON клиенты получают счетчик, браузер возвращается на страницу задач.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, errors.Invalid("некорректная форма").WithError(err))
		return
	}

	req, err := panel.ParseBulkForm(r.PostForm, s.location)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := panel.Apply(r.Context(), s.tasks, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := fmt.Sprintf("Обработано задач: %d", n)
	s.securityLogger.LogUserAction(r, "task_bulk", map[string]interface{}{
		"action":   string(req.Action),
		"selected": len(req.IDs),
		"affected": n,
	})

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		s.writeJSON(w, http.StatusOK, bulkResponse{Success: true, Affected: n, Message: msg})
		return
	}
	http.Redirect(w, r, "/tasks?message="+url.QueryEscape(msg), http.StatusSeeOther)
}
