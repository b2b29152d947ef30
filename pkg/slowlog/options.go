package slowlog

type options struct {
	minLevel   string
	thresholds map[string][5]float64
}

// Option configures an Analyzer.
type Option func(*options)

// WithMinLevel sets the lowest level reported: "debug", "info", "warning",
// "error" or "critical". Default: "warning".
func WithMinLevel(level string) Option {
	return func(o *options) {
		o.minLevel = level
	}
}

// WithThresholds replaces the five range boundaries of one heuristic. Keys are
// "slow_query", "rows_sent", "rows_examined", "examined_ratio" and "lock_time".
func WithThresholds(key string, bounds [5]float64) Option {
	return func(o *options) {
		if o.thresholds == nil {
			o.thresholds = make(map[string][5]float64)
		}
		o.thresholds[key] = bounds
	}
}

func defaultOptions() options {
	return options{minLevel: "warning"}
}
