// Package pattern holds the compiled matchers used to recognize slow query
// log records: the three-line header block, semicolon-terminated statements
// and replication boilerplate that is never scored.
package pattern

import (
	"regexp"
	"strconv"

	"github.com/crimson-sun/slowlog/internal/model"
)

// Example record:
//
//	# Time: 121228 15:24:25
//	# User@Host: user[db] @ host [10.10.10.10]
//	# Query_time: 0.000255  Lock_time: 0.000044 Rows_sent: 590  Rows_examined: 590
//	SET timestamp=1356737065;
//	SELECT foo FROM bar
//	WHERE x = 2;
const (
	timeLine     = `^#\s+Time:\s+(?P<date>[0-9]{6})\s+(?P<time>[0-9]{1,2}:[0-9]{1,2}:[0-9]{1,2})\n`
	userHostLine = `^# User@Host: (?P<user_host>.* @ .*)\n`
	statsLine    = `^# Query_time: (?P<query_seconds>[0-9]+\.[0-9]+)\s+` +
		`Lock_time: (?P<lock_time>[0-9]+\.[0-9]+)\s+` +
		`Rows_sent: (?P<rows_sent>[0-9]+)\s+` +
		`Rows_examined: (?P<rows_examined>[0-9]+)\n`
)

var (
	headerRe    = regexp.MustCompile(`(?m)` + timeLine + userHostLine + statsLine)
	statementRe = regexp.MustCompile(`(?im)^\s*(?P<query>[^;]+;)$`)

	// Replication writes these around every logged statement.
	ignoreRes = []*regexp.Regexp{
		regexp.MustCompile(`^\s*use .*;$`),
		regexp.MustCompile(`^\s*SET timestamp=[0-9]+;$`),
	}
)

var (
	idxDate         = headerRe.SubexpIndex("date")
	idxTime         = headerRe.SubexpIndex("time")
	idxUserHost     = headerRe.SubexpIndex("user_host")
	idxQuerySeconds = headerRe.SubexpIndex("query_seconds")
	idxLockTime     = headerRe.SubexpIndex("lock_time")
	idxRowsSent     = headerRe.SubexpIndex("rows_sent")
	idxRowsExamined = headerRe.SubexpIndex("rows_examined")
	idxQuery        = statementRe.SubexpIndex("query")
)

// MatchHeader searches buf for a complete header block. It reports false
// when no block is present or when a numeric field fails to parse, so a
// partially populated header is never returned.
func MatchHeader(buf string) (model.LogHeader, bool) {
	m := headerRe.FindStringSubmatch(buf)
	if m == nil {
		return model.LogHeader{}, false
	}

	querySeconds, err := strconv.ParseFloat(m[idxQuerySeconds], 64)
	if err != nil {
		return model.LogHeader{}, false
	}
	lockSeconds, err := strconv.ParseFloat(m[idxLockTime], 64)
	if err != nil {
		return model.LogHeader{}, false
	}
	rowsSent, err := strconv.ParseInt(m[idxRowsSent], 10, 64)
	if err != nil {
		return model.LogHeader{}, false
	}
	rowsExamined, err := strconv.ParseInt(m[idxRowsExamined], 10, 64)
	if err != nil {
		return model.LogHeader{}, false
	}

	return model.LogHeader{
		Date:         m[idxDate],
		Time:         m[idxTime],
		UserHost:     m[idxUserHost],
		QuerySeconds: querySeconds,
		LockSeconds:  lockSeconds,
		RowsSent:     rowsSent,
		RowsExamined: rowsExamined,
	}, true
}

// Statement is a terminated statement located in a buffer.
type Statement struct {
	Event model.QueryEvent
	Start int // byte offset of the match in the buffer
	End   int // exclusive
}

// MatchStatements returns every statement in buf, in order. A statement is
// everything up to and including a semicolon that ends a line; it may span
// several lines.
func MatchStatements(buf string) []Statement {
	locs := statementRe.FindAllStringSubmatchIndex(buf, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]Statement, 0, len(locs))
	for _, loc := range locs {
		qs, qe := loc[2*idxQuery], loc[2*idxQuery+1]
		out = append(out, Statement{
			Event: model.QueryEvent{Query: buf[qs:qe]},
			Start: loc[0],
			End:   loc[1],
		})
	}
	return out
}

// IsIgnorable reports whether stmt is a "use <db>;" or "SET timestamp=N;"
// replication artifact.
func IsIgnorable(stmt string) bool {
	for _, re := range ignoreRes {
		if re.MatchString(stmt) {
			return true
		}
	}
	return false
}
