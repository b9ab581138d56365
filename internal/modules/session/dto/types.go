package dto

import "time"

type ActivityOutput struct {
	ID              string
	ApplicationName string
	FilePath        string
	StartTime       time.Time
	EndTime         *time.Time
	Running         bool
	Duration        time.Duration
}

type SessionOutput struct {
	ID         string
	Name       string
	StartTime  time.Time
	EndTime    *time.Time
	IsActive   bool
	Duration   time.Duration
	Activities []ActivityOutput
}

type TotalOutput struct {
	Key      string
	Duration time.Duration
	Count    int
}

type StatisticsOutput struct {
	SessionID    string
	Applications []TotalOutput
	Files        []TotalOutput
	TotalActive  time.Duration
}

type SwitchOutput struct {
	Activity ActivityOutput
	Switched bool
}

type ExportInput struct {
	SessionID string
}

type ExportOutput struct {
	SessionID string
	Path      string
}

type ReindexOutput struct {
	Sessions   int
	Activities int
}

type ReportInput struct {
	Since time.Time
}

type ReportOutput struct {
	Since        time.Time
	Applications []TotalOutput
	Files        []TotalOutput
}
