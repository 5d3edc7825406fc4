package daemon

import "time"

// StartOptions configures the daemon (home, listen address, persistence, otel).
type StartOptions struct {
	Home       string
	Addr       string // listen address, e.g. "localhost:3719"
	Dev        bool
	PprofAddr  string
	APIKey     string        // if set, the HTTP API requires X-API-Key
	DBDriver   string        // "sqlite" (default) or "postgres"
	DBURL      string        // for postgres: connection string (or DATABASE_URL env)
	FlushDelay time.Duration // store debounce window; zero uses the store default
	Seed       bool          // insert the demo workspace when the store is empty
	EnableOtel bool          // enable OpenTelemetry metrics (Prometheus exporter + HTTP/SSE instrumentation)
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
