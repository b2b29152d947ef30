package notifier

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/slowlog/internal/model"
)

const maxSummaryRunes = 120

// Summarize collapses whitespace in a statement, NFC-normalizes it and
// truncates it to 120 runes for use as a one-line title.
func Summarize(query string) string {
	s := strings.Join(strings.Fields(norm.NFC.String(query)), " ")
	r := []rune(s)
	if len(r) > maxSummaryRunes {
		return string(r[:maxSummaryRunes-3]) + "..."
	}
	return s
}

// Record is the flat JSON shape written by the file and webhook notifiers.
type Record struct {
	Name    string           `json:"name"`
	Level   model.Level      `json:"level"`
	Summary string           `json:"summary"`
	Header  model.LogHeader  `json:"header"`
	Data    model.QueryEvent `json:"data"`
	Tag     string           `json:"language"`
}

// NewRecord flattens a finding for serialization.
func NewRecord(f model.Finding) Record {
	return Record{
		Name:    f.Name,
		Level:   f.Level,
		Summary: Summarize(f.Event.Query),
		Header:  f.Header,
		Data:    f.Event,
		Tag:     f.Tag,
	}
}
