package panel

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/pkg/errors"
)

func TestSelection_GroupsAndCount(t *testing.T) {
	s := NewSelection()
	s.AddGroup("today", 1, 2, 3)
	s.AddGroup("overdue", 4, 5, 2)

	s.SelectAll("today", true)
	if !s.AllSelected("today") || s.AllSelected("overdue") {
		t.Error("select-all state is not independent per group")
	}
	if s.Count() != 3 {
		t.Errorf("Count() = %d, want 3", s.Count())
	}

	s.Toggle("overdue", 5, true)
	s.Toggle("overdue", 2, true)
	if s.Count() != 4 {
		t.Errorf("Count() = %d, want 4 (shared row counted once)", s.Count())
	}

	if s.Toggle("overdue", 1, true) {
		t.Error("Toggle() accepted a row from another group")
	}
	if s.Toggle("missing", 1, true) {
		t.Error("Toggle() accepted an unknown group")
	}

	s.Toggle("today", 1, false)
	if s.AllSelected("today") {
		t.Error("select-all still checked after unchecking a row")
	}

	want := []HiddenField{
		{Name: FieldTaskIDs, Value: "2"},
		{Name: FieldTaskIDs, Value: "3"},
		{Name: FieldTaskIDs, Value: "5"},
	}
	if got := s.HiddenFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("HiddenFields() = %v, want %v", got, want)
	}

	s.Clear()
	if s.Count() != 0 || len(s.HiddenFields()) != 0 {
		t.Error("Clear() left rows selected")
	}
}

func TestSelection_AddGroupResets(t *testing.T) {
	s := NewSelection()
	s.AddGroup("all", 1, 2)
	s.SelectAll("all", true)
	s.AddGroup("all", 2, 3)

	if s.Count() != 0 {
		t.Errorf("Count() = %d after re-registering group", s.Count())
	}
	if s.AllSelected("empty") {
		t.Error("unknown group reported as all selected")
	}
}

func TestParseBulkForm_RoundTrip(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	s := NewSelection()
	s.AddGroup("list", 10, 11, 12)
	s.Toggle("list", 12, true)
	s.Toggle("list", 10, true)

	form := s.Form(BulkSetDueDate, url.Values{FieldDueDate: {"2024-04-01"}})
	req, err := ParseBulkForm(form, loc)
	if err != nil {
		t.Fatalf("ParseBulkForm() error = %v", err)
	}

	if req.Action != BulkSetDueDate || !reflect.DeepEqual(req.IDs, []int64{10, 12}) {
		t.Errorf("request = %+v", req)
	}
	want := time.Date(2024, 4, 1, 0, 0, 0, 0, loc)
	if req.DueDate == nil || !req.DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", req.DueDate, want)
	}
}

func TestParseBulkForm_Errors(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want error
	}{
		{"unknown action", url.Values{FieldAction: {"archive"}, FieldTaskIDs: {"1"}}, errors.ErrInvalidBulkAction},
		{"no ids", url.Values{FieldAction: {"delete"}}, errors.ErrInvalidTaskID},
		{"bad id", url.Values{FieldAction: {"delete"}, FieldTaskIDs: {"x"}}, errors.ErrInvalidTaskID},
		{"bad recurrence", url.Values{FieldAction: {"set_recurrence"}, FieldTaskIDs: {"1"}, FieldRecurrence: {"HOURLY"}}, errors.ErrInvalidRecurrence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBulkForm(tt.form, time.UTC)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseBulkForm() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type fakeBulk struct {
	action string
	ids    []int64
	due    *time.Time
	rec    models.RecurrenceType
}

func (f *fakeBulk) BulkDelete(_ context.Context, ids []int64) (int, error) {
	f.action, f.ids = "delete", ids
	return len(ids), nil
}

func (f *fakeBulk) BulkComplete(_ context.Context, ids []int64) (int, error) {
	f.action, f.ids = "complete", ids
	return len(ids), nil
}

func (f *fakeBulk) BulkSetDueDate(_ context.Context, ids []int64, due *time.Time) (int, error) {
	f.action, f.ids, f.due = "due", ids, due
	return len(ids), nil
}

func (f *fakeBulk) BulkSetRecurrence(_ context.Context, ids []int64, r models.RecurrenceType) (int, error) {
	f.action, f.ids, f.rec = "recurrence", ids, r
	return len(ids), nil
}

func TestApply(t *testing.T) {
	form := url.Values{FieldAction: {"set_recurrence"}, FieldTaskIDs: {"3", "4", "3"}, FieldRecurrence: {"weekly"}}
	req, err := ParseBulkForm(form, time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	svc := &fakeBulk{}
	n, err := Apply(context.Background(), svc, req)
	if err != nil || n != 2 {
		t.Fatalf("Apply() = %d, %v", n, err)
	}
	if svc.action != "recurrence" || svc.rec != models.RecurrenceWeekly {
		t.Errorf("service got %+v", svc)
	}
}

func TestDetailForm_Fill(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	// 22:30 UTC is already the next calendar day in MSK
	due := time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)

	var f DetailForm
	err := f.Fill(&api.Task{
		ID:             7,
		Title:          "Заправить картриджи",
		Notes:          "3 этаж",
		DueDate:        &api.Time{Time: due},
		RecurrenceType: "WEEKLY",
		ListName:       "Бухгалтерия",
	}, loc)
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}

	want := DetailForm{
		ID:             7,
		Title:          "Заправить картриджи",
		Notes:          "3 этаж",
		DueDate:        "2024-03-16",
		RecurrenceType: "WEEKLY",
		ListName:       "Бухгалтерия",
		Visible:        true,
	}
	if f != want {
		t.Errorf("form = %+v, want %+v", f, want)
	}
	if got := f.Values().Get(FieldDueDate); got != "2024-03-16" {
		t.Errorf("Values() due_date = %q", got)
	}
}

func TestDetailForm_FillWithoutOptionalFields(t *testing.T) {
	f := DetailForm{DueDate: "2020-01-01", ListName: "stale", Visible: true}
	if err := f.Fill(&api.Task{ID: 1, Title: "Без срока"}, time.UTC); err != nil {
		t.Fatal(err)
	}
	if f.DueDate != "" || f.ListName != "" || !f.Visible {
		t.Errorf("form = %+v", f)
	}

	if err := f.Fill(&api.Task{}, time.UTC); err == nil {
		t.Error("Fill(no id) error = nil")
	}
	if f.Visible {
		t.Error("panel visible after failed fill")
	}
}

func TestDetailForm_LoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks/5" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"id":5,"title":"Починить принтер","notes":"","due_date":"2024-03-20T00:00:00","list_name":"","recurrence_type":""}`)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", time.Second)

	var f DetailForm
	if err := f.Load(context.Background(), src, 5, time.Local); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !f.Visible || f.DueDate != "2024-03-20" || f.Title != "Починить принтер" {
		t.Errorf("form = %+v", f)
	}

	if err := f.Load(context.Background(), src, 6, time.Local); err == nil {
		t.Error("Load(missing) error = nil")
	}
	if f.Visible {
		t.Error("panel visible after failed load")
	}
}

func TestHTTPSource_PendingAndBulk(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"success":false,"message":"нет доступа"}`)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/tasks":
			if r.URL.Query().Get("completed") != "false" {
				t.Errorf("completed filter = %q", r.URL.Query().Get("completed"))
			}
			io.WriteString(w, `[{"id":1,"title":"a","list_name":"Офис"},{"id":2,"title":"b","list_name":""}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/tasks/bulk":
			r.ParseForm()
			gotForm = r.PostForm
			if len(r.PostForm[FieldTaskIDs]) == 0 {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"success":false,"message":"не выбрано ни одной задачи"}`)
				return
			}
			io.WriteString(w, `{"success":true,"affected":2,"message":"ok"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	src := NewHTTPSource(srv.URL, "secret", time.Second)

	tasks, err := src.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(tasks) != 2 || tasks[0].ListName != "Офис" {
		t.Fatalf("tasks = %+v", tasks)
	}

	s := NewSelection()
	s.AddGroup("Офис", 1)
	s.AddGroup("", 2)
	s.Toggle("Офис", 1, true)
	s.Toggle("", 2, true)

	n, err := src.SubmitBulk(ctx, s.Form(BulkComplete, nil))
	if err != nil {
		t.Fatalf("SubmitBulk() error = %v", err)
	}
	if n != 2 || gotForm.Get(FieldAction) != "complete" || len(gotForm[FieldTaskIDs]) != 2 {
		t.Errorf("n = %d, form = %v", n, gotForm)
	}

	s.Clear()
	_, err = src.SubmitBulk(ctx, s.Form(BulkDelete, nil))
	if err == nil || !strings.Contains(err.Error(), "не выбрано") {
		t.Errorf("empty bulk error = %v", err)
	}

	if _, err := NewHTTPSource(srv.URL, "", time.Second).Pending(ctx); err == nil {
		t.Error("Pending() without token error = nil")
	}
}
