package engine

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/internal/timer"
)

// Атрибуты, которыми страница таймеров размечает снимки
const (
	AttrTimerID        = "data-timer-id"
	AttrTimerType      = "data-timer-type"
	AttrTimerLabel     = "data-timer-label"
	AttrStartDatetime  = "data-start-datetime"
	AttrTargetDatetime = "data-target-datetime"
	AttrIsPaused       = "data-is-paused"
	AttrPausedDuration = "data-paused-duration"
	AttrLastPauseStart = "data-last-pause-start"
)

// PageError ошибка разбора одного элемента страницы
type PageError struct {
	TimerID string
	Attr    string
	Err     error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("timer %q: attribute %s: %v", e.TimerID, e.Attr, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// ParsePage извлекает снимки из HTML страницы таймеров. Элементы с
// ошибками разметки пропускаются и возвращаются списком problems.
func ParsePage(r io.Reader) (records []Record, problems []error, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[int64]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attrs, ok := timerAttrs(n); ok {
				rec, perr := parseRecord(attrs)
				switch {
				case perr != nil:
					problems = append(problems, perr)
				case seen[rec.ID]:
					problems = append(problems, &PageError{TimerID: attrs[AttrTimerID], Attr: AttrTimerID, Err: fmt.Errorf("duplicate id")})
				default:
					seen[rec.ID] = true
					records = append(records, rec)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return records, problems, nil
}

func timerAttrs(n *html.Node) (map[string]string, bool) {
	var attrs map[string]string
	for _, a := range n.Attr {
		if !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[a.Key] = strings.TrimSpace(a.Val)
	}
	_, ok := attrs[AttrTimerID]
	return attrs, ok
}

func parseRecord(attrs map[string]string) (Record, error) {
	raw := attrs[AttrTimerID]
	fail := func(attr string, err error) (Record, error) {
		return Record{}, &PageError{TimerID: raw, Attr: attr, Err: err}
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return fail(AttrTimerID, fmt.Errorf("invalid id"))
	}

	mode, err := timer.ParseMode(attrs[AttrTimerType])
	if err != nil {
		return fail(AttrTimerType, err)
	}

	start, err := requiredTime(attrs[AttrStartDatetime])
	if err != nil {
		return fail(AttrStartDatetime, err)
	}
	target, err := optionalTime(attrs[AttrTargetDatetime])
	if err != nil {
		return fail(AttrTargetDatetime, err)
	}
	pauseStart, err := optionalTime(attrs[AttrLastPauseStart])
	if err != nil {
		return fail(AttrLastPauseStart, err)
	}

	paused, err := strconv.ParseBool(attrs[AttrIsPaused])
	if err != nil {
		return fail(AttrIsPaused, err)
	}

	var pausedSeconds int64
	if v := attrs[AttrPausedDuration]; v != "" {
		pausedSeconds, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fail(AttrPausedDuration, err)
		}
	}

	rec := Record{
		Snapshot: timer.Snapshot{
			ID:            id,
			Mode:          mode,
			Start:         start,
			Target:        target,
			Paused:        paused,
			PausedSeconds: pausedSeconds,
			PauseStart:    pauseStart,
		},
		Label: attrs[AttrTimerLabel],
	}
	if err := rec.Validate(); err != nil {
		return fail(AttrTimerID, err)
	}
	return rec, nil
}

func isEmpty(v string) bool {
	return v == "" || v == "None" || v == "null"
}

func requiredTime(v string) (time.Time, error) {
	if isEmpty(v) {
		return time.Time{}, fmt.Errorf("missing")
	}
	return api.ParseTime(v)
}

func optionalTime(v string) (*time.Time, error) {
	if isEmpty(v) {
		return nil, nil
	}
	t, err := api.ParseTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
