// internal/session/config.go
package session

import "time"

// TriggerMode selects how the event scheduler decides when the next
// mini-event fires.
type TriggerMode string

const (
	// ByMessageCount fires after a configured number of chat messages.
	ByMessageCount TriggerMode = "messages"
	// ByWallClock fires after a configured number of seconds.
	ByWallClock TriggerMode = "seconds"
)

// Config is the owner-supplied lobby configuration. It is supplied at
// creation and may be mutated at runtime by the owner; mutating the trigger
// settings resets the scheduler.
type Config struct {
	Name             string        `json:"name"`
	TriggerMode      TriggerMode   `json:"trigger_mode"`
	MessageThreshold int           `json:"message_threshold"` // ByMessageCount target
	SecondsInterval  int           `json:"seconds_interval"`  // ByWallClock target
	MaxRounds        int           `json:"max_rounds"`
	Capacity         int           `json:"capacity"`
	Unbounded        bool          `json:"unbounded"` // ignore Capacity entirely
	SimulatedCount   int           `json:"simulated_count"`
	Public           bool          `json:"public"`
	Catalog          []EventSpec   `json:"catalog,omitempty"`
	TriggerDelay     time.Duration `json:"-"` // pause before a due event fires, lets the triggering message render
}

// withDefaults fills in zero values the way the original service did.
func (c Config) withDefaults() Config {
	if c.TriggerMode == "" {
		c.TriggerMode = ByMessageCount
	}
	if c.MessageThreshold <= 0 {
		c.MessageThreshold = 5
	}
	if c.SecondsInterval <= 0 {
		c.SecondsInterval = 120
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 10
	}
	if c.Capacity <= 0 && !c.Unbounded {
		c.Capacity = seatCount
	}
	if len(c.Catalog) == 0 {
		c.Catalog = DefaultCatalog()
	}
	if c.TriggerDelay <= 0 {
		c.TriggerDelay = 2 * time.Second
	}
	return c
}

// target returns the scheduler target for the active trigger mode.
func (c Config) target() int {
	if c.TriggerMode == ByWallClock {
		return c.SecondsInterval
	}
	return c.MessageThreshold
}
