// Package actuator drives the two binary output lines the companion robot
// polls for motion control. Line A is the go line, line B the stop line:
// GO=(1,0), STOP=(0,1). A noise decision leaves both lines untouched so the
// robot keeps its last commanded state.
package actuator

import (
	"log/slog"

	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/errors"
	"github.com/tphakala/voicebot-go/internal/keyword"
	"github.com/tphakala/voicebot-go/internal/logging"
)

// LineState is the level pair of the two output lines.
type LineState struct {
	Go   bool // line A
	Stop bool // line B
}

// Actuator applies actuation decisions to the output lines.
type Actuator interface {
	// Apply drives the lines to the state matching the decision. A noise
	// decision must not change the lines.
	Apply(decision keyword.Decision) error

	// Close releases the output lines.
	Close() error
}

// lineStateFor maps a decision to the line levels it drives. The second
// return is false for decisions that leave the lines unchanged.
func lineStateFor(decision keyword.Decision) (LineState, bool) {
	switch decision {
	case keyword.DecisionGo:
		return LineState{Go: true, Stop: false}, true
	case keyword.DecisionStop:
		return LineState{Go: false, Stop: true}, true
	default:
		return LineState{}, false
	}
}

// New creates the actuator named by the settings.
func New(settings *conf.Settings) (Actuator, error) {
	switch settings.Realtime.Actuator.Type {
	case "gpio":
		return NewGPIO(settings.Realtime.Actuator.GoPin, settings.Realtime.Actuator.StopPin)
	case "console", "":
		return NewConsole(), nil
	default:
		return nil, errors.Newf("unsupported actuator type: %q", settings.Realtime.Actuator.Type).
			Component("actuator").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Console is an actuator that only logs line transitions. It is the default
// on development machines without GPIO hardware.
type Console struct {
	logger *slog.Logger
	state  LineState
}

// NewConsole creates a console actuator.
func NewConsole() *Console {
	logger := logging.ForService("actuator")
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{logger: logger}
}

// Apply logs the transition for go and stop decisions.
func (c *Console) Apply(decision keyword.Decision) error {
	state, change := lineStateFor(decision)
	if !change {
		return nil
	}
	c.state = state
	c.logger.Info("actuation state changed",
		"decision", decision.String(),
		"line_go", state.Go,
		"line_stop", state.Stop)
	return nil
}

// State returns the last driven line state.
func (c *Console) State() LineState {
	return c.state
}

// Close implements Actuator.
func (c *Console) Close() error {
	return nil
}
