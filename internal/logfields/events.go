package logfields

import "go.uber.org/zap"

// Event identifies a log record as a machine-readable event of the given
// name.
func Event(val string) zap.Field {
	return zap.String("event", val)
}

func EventProvider(val string) zap.Field {
	return zap.String("event_provider", val)
}
