package domain

import "time"

const (
	SchemaVersion = 1
	Unknown       = "Unknown"
)

type Session struct {
	ID         string
	Name       string
	StartTime  time.Time
	EndTime    *time.Time
	IsActive   bool
	Activities []Activity
}

type Activity struct {
	ID              string
	ApplicationName string
	FilePath        string
	StartTime       time.Time
	EndTime         *time.Time
}

// Duration is measured up to now while the session is active.
func (s Session) Duration(now time.Time) time.Duration {
	return span(s.StartTime, s.EndTime, now)
}

// Valid checks the active/ended invariant and that at most one activity runs.
func (s Session) Valid() bool {
	if s.ID == "" || (s.EndTime == nil) != s.IsActive {
		return false
	}
	running := 0
	for _, a := range s.Activities {
		if a.ID == "" {
			return false
		}
		if a.Running() {
			running++
		}
	}
	return running <= 1
}

// RunningActivity returns the index of the activity without an end time, or -1.
func (s Session) RunningActivity() int {
	for i := range s.Activities {
		if s.Activities[i].Running() {
			return i
		}
	}
	return -1
}

func (s Session) Activity(activityID string) int {
	for i := range s.Activities {
		if s.Activities[i].ID == activityID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no pointers or backing arrays with s.
func (s Session) Clone() Session {
	out := s
	out.EndTime = cloneTime(s.EndTime)
	out.Activities = make([]Activity, len(s.Activities))
	for i, a := range s.Activities {
		out.Activities[i] = a.Clone()
	}
	return out
}

func (a Activity) Running() bool {
	return a.EndTime == nil
}

func (a Activity) Duration(now time.Time) time.Duration {
	return span(a.StartTime, a.EndTime, now)
}

// Matches reports whether the activity tracks the given window.
func (a Activity) Matches(applicationName, filePath string) bool {
	return a.ApplicationName == applicationName && a.FilePath == filePath
}

func (a Activity) Clone() Activity {
	out := a
	out.EndTime = cloneTime(a.EndTime)
	return out
}

func span(start time.Time, end *time.Time, now time.Time) time.Duration {
	stop := now
	if end != nil {
		stop = *end
	}
	d := stop.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
