package timer

import (
	"fmt"
	"time"
)

const (
	SecondsPerDay  = 86400
	SecondsPerHour = 3600
)

// Display результат расчета для отображения
type Display struct {
	Seconds int64 // всего секунд, не меньше нуля
	Days    int64
	Hours   int64
	Minutes int64
	Urgent  bool
}

// Compute рассчитывает отображаемое время снимка на момент now.
// ok=false означает, что снимок нельзя посчитать и его нужно пропустить.
func Compute(s Snapshot, now time.Time) (Display, bool) {
	var raw int64
	switch s.Mode {
	case ModeElapsed:
		raw = floorSeconds(now.Sub(s.Start))
	case ModeRemaining:
		if s.Target == nil {
			return Display{}, false
		}
		raw = floorSeconds(s.Target.Sub(now))
	default:
		return Display{}, false
	}

	paused := s.PausedSeconds
	if s.Paused {
		if s.PauseStart == nil {
			return Display{}, false
		}
		if open := floorSeconds(now.Sub(*s.PauseStart)); open > 0 {
			paused += open
		}
	}

	seconds := raw - paused
	if seconds < 0 {
		seconds = 0
	}

	return Display{
		Seconds: seconds,
		Days:    seconds / SecondsPerDay,
		Hours:   (seconds % SecondsPerDay) / SecondsPerHour,
		Minutes: (seconds % SecondsPerHour) / 60,
		Urgent:  s.Mode == ModeRemaining && seconds < SecondsPerDay,
	}, true
}

// String форматирует дни и часы
func (d Display) String() string {
	return fmt.Sprintf("%d д. %d ч.", d.Days, d.Hours)
}

// floorSeconds округляет длительность вниз до целых секунд, включая отрицательные
func floorSeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second < 0 {
		s--
	}
	return s
}
