package model

// LogHeader is the metadata block that precedes one or more statements in a
// slow query log.
type LogHeader struct {
	Date         string  `json:"date"` // 6 digits, e.g. 121228
	Time         string  `json:"time"` // H:MM:SS or HH:MM:SS
	UserHost     string  `json:"user_host"`
	QuerySeconds float64 `json:"query_seconds"`
	LockSeconds  float64 `json:"lock_time"`
	RowsSent     int64   `json:"rows_sent"`
	RowsExamined int64   `json:"rows_examined"`
}

// QueryEvent is a single statement attributed to the most recent header.
type QueryEvent struct {
	Query string `json:"query"` // includes the terminating semicolon
}
