package model

// SourceTag identifies the domain findings originate from.
const SourceTag = "sql"

// Finding is a heuristic result that met the minimum notification level.
type Finding struct {
	Name   string     `json:"name"`
	Level  Level      `json:"level"`
	Header LogHeader  `json:"header"`
	Event  QueryEvent `json:"data"`
	Tag    string     `json:"language"`
}
