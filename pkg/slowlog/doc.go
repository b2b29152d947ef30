// Package slowlog scans MySQL slow query logs and scores each query against
// numeric thresholds for duration, lock time and row counts.
//
// Quick start:
//
//	findings, err := slowlog.Analyze(ctx, f, slowlog.WithMinLevel("error"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, fd := range findings {
//	    fmt.Println(fd.Level, fd.Name, fd.Summary)
//	}
//
// An Analyzer is safe for concurrent use; each Analyze call keeps its own
// parser state.
package slowlog
