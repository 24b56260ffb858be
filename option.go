package cankit

import (
	"log/slog"

	"github.com/canlink/cankit/internal/logging"
)

// Mode selects which CAN socket protocol a Bus binds to.
type Mode int

const (
	// ModeRaw binds a CAN_RAW socket (transport/socketcan): every send
	// writes one frame immediately and every receive reads one frame.
	ModeRaw Mode = iota
	// ModeBCM binds a CAN_BCM socket (transport/bcm): the kernel owns
	// periodic transmission and change-filtered reception.
	ModeBCM
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeBCM:
		return "bcm"
	default:
		return "unknown"
	}
}

type busConfig struct {
	logger *slog.Logger
}

// Option configures Open, following the functional-options shape used
// throughout cankit's transports (grounded on the teacher's
// internal/server.NewServer(opts ...ServerOption) idiom).
type Option func(*busConfig)

// WithLogger overrides the package-default logger for a Bus and the
// transport it opens.
func WithLogger(l *slog.Logger) Option {
	return func(c *busConfig) { c.logger = l }
}

func defaultBusConfig() *busConfig {
	return &busConfig{logger: logging.L()}
}
