package orchestrator

// Config carries the two reducer-visible timeouts. Everything else
// (provider selection, SSE cadence, staff session TTL) lives outside the
// pure core.
type Config struct {
	ConsentTimeoutMs     int64
	InactivityTimeoutMs  int64
	LegacyPersonalWakeup bool
}

// DefaultConfig matches the defaults named in the configuration table.
func DefaultConfig() Config {
	return Config{
		ConsentTimeoutMs:    30_000,
		InactivityTimeoutMs: 300_000,
	}
}
