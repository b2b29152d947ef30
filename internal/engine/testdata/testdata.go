// Package testdata embeds sample slow query logs with the record counts a
// correct reassembler must produce for each.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

//go:embed *.log
var logs embed.FS

// CorpusEntry describes one embedded log file.
type CorpusEntry struct {
	File            string `json:"file"`
	Description     string `json:"description"`
	ExpectedHeaders int    `json:"expected_headers"`
	ExpectedEvents  int    `json:"expected_events"`
	ExpectedIgnored int    `json:"expected_ignored"`
	// ExpectedFindings counts findings at the default minimum level (warning).
	ExpectedFindings int `json:"expected_findings"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// ReadLog returns the contents of an embedded log file.
func ReadLog(name string) (string, error) {
	b, err := logs.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}
