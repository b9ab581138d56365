package usecase

import (
	"time"

	"timetrack/internal/modules/session/domain"
	sessiondto "timetrack/internal/modules/session/dto"
)

func toSessionOutput(s domain.Session, now time.Time) sessiondto.SessionOutput {
	out := sessiondto.SessionOutput{
		ID:         s.ID,
		Name:       s.Name,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		IsActive:   s.IsActive,
		Duration:   s.Duration(now),
		Activities: make([]sessiondto.ActivityOutput, 0, len(s.Activities)),
	}
	for _, a := range s.Activities {
		out.Activities = append(out.Activities, toActivityOutput(a, now))
	}
	return out
}

func toActivityOutput(a domain.Activity, now time.Time) sessiondto.ActivityOutput {
	return sessiondto.ActivityOutput{
		ID:              a.ID,
		ApplicationName: a.ApplicationName,
		FilePath:        a.FilePath,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Running:         a.Running(),
		Duration:        a.Duration(now),
	}
}

func toTotalOutputs(totals []domain.Total) []sessiondto.TotalOutput {
	out := make([]sessiondto.TotalOutput, 0, len(totals))
	for _, t := range totals {
		out = append(out, sessiondto.TotalOutput{Key: t.Key, Duration: t.Duration, Count: t.Count})
	}
	return out
}
