package spqrlog

import "time"

var RLogger = NewRouteLogger(-1)

// RouteLogger reports statements whose routing and rewriting took longer
// than the configured threshold. A negative threshold disables reporting.
type RouteLogger struct {
	logMinDuration time.Duration
}

func NewRouteLogger(logMinDuration time.Duration) *RouteLogger {
	return &RouteLogger{
		logMinDuration: logMinDuration,
	}
}

func ReloadRLogger(logMinDuration time.Duration) {
	RLogger = NewRouteLogger(logMinDuration)
}

func (s *RouteLogger) shouldLogRoute(t time.Duration) bool {
	return s.logMinDuration >= 0 && t > s.logMinDuration
}

func (s *RouteLogger) ReportRoute(stmt string, units int, t time.Duration) {
	if s.shouldLogRoute(t) {
		Zero.Info().Str("stmt", stmt).Int("units", units).Dur("duration", t).Msg("log slow route")
	}
}
