package eventhandler

import (
	"fmt"
	"sort"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// Subscriber is a handler that knows which events it consumes.
type Subscriber interface {
	EventTypes() []shared.EventType
	Handle(event shared.Event) error
}

// Register subscribes every handler to its event types.
func Register(bus shared.EventSubscriber, subscribers ...Subscriber) error {
	for _, s := range subscribers {
		for _, t := range s.EventTypes() {
			if err := bus.Subscribe(t, s.Handle); err != nil {
				return fmt.Errorf("subscribe %T to %s: %w", s, t, err)
			}
		}
	}
	return nil
}

func correlationOf(event shared.Event) (string, bool) {
	c, ok := event.(interface{ Correlation() string })
	if !ok || c.Correlation() == "" {
		return "", false
	}
	return c.Correlation(), true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
