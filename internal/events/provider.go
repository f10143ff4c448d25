package events

import (
	"fmt"
	"strings"

	"github.com/remoteclaw/remoteclaw/internal/common/config"
	"github.com/remoteclaw/remoteclaw/internal/common/logger"
	"github.com/remoteclaw/remoteclaw/internal/events/bus"
)

// Provide builds the configured event bus implementation: NATS when a URL is
// configured, in-memory otherwise. The returned cleanup closes the bus.
func Provide(cfg config.NATSConfig, log *logger.Logger) (bus.EventBus, func(), error) {
	if strings.TrimSpace(cfg.URL) != "" {
		natsBus, err := bus.NewNATSEventBus(bus.NATSOptions{
			URL:           cfg.URL,
			ClientID:      cfg.ClientID,
			MaxReconnects: cfg.MaxReconnects,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize NATS event bus: %w", err)
		}
		return natsBus, natsBus.Close, nil
	}

	memBus := bus.NewMemoryEventBus(log)
	return memBus, memBus.Close, nil
}
