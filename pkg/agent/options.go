package agent

import loggerpkg "github.com/minhyannv/diagram-agent/pkg/logger"

// DriverOption configures optional dependencies for Driver.
type DriverOption func(*driverDeps)

type driverDeps struct {
	logger loggerpkg.Logger
	newID  func() string
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) DriverOption {
	return func(d *driverDeps) {
		d.logger = l
	}
}

// WithSessionIDs overrides how session ids are generated.
func WithSessionIDs(fn func() string) DriverOption {
	return func(d *driverDeps) {
		d.newID = fn
	}
}
