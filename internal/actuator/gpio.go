package actuator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tphakala/voicebot-go/internal/errors"
	"github.com/tphakala/voicebot-go/internal/keyword"
)

const gpioRoot = "/sys/class/gpio"

// GPIO drives two output lines through the Linux sysfs GPIO interface.
type GPIO struct {
	goPin   int
	stopPin int
	root    string
}

// NewGPIO exports the two pins and configures them as outputs, both low.
func NewGPIO(goPin, stopPin int) (*GPIO, error) {
	g := &GPIO{goPin: goPin, stopPin: stopPin, root: gpioRoot}
	for _, pin := range []int{goPin, stopPin} {
		if err := g.exportPin(pin); err != nil {
			return nil, errors.New(err).
				Component("actuator").
				Category(errors.CategoryActuator).
				Context("pin", pin).
				Build()
		}
	}
	return g, nil
}

func (g *GPIO) pinDir(pin int) string {
	return filepath.Join(g.root, fmt.Sprintf("gpio%d", pin))
}

func (g *GPIO) exportPin(pin int) error {
	if _, err := os.Stat(g.pinDir(pin)); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(g.root, "export"), fmt.Appendf(nil, "%d", pin), 0o200); err != nil {
			return fmt.Errorf("failed to export gpio %d: %w", pin, err)
		}
		// The direction file appears asynchronously after export.
		time.Sleep(50 * time.Millisecond)
	}
	if err := os.WriteFile(filepath.Join(g.pinDir(pin), "direction"), []byte("out"), 0o644); err != nil {
		return fmt.Errorf("failed to set gpio %d direction: %w", pin, err)
	}
	return g.writeValue(pin, false)
}

func (g *GPIO) writeValue(pin int, high bool) error {
	value := []byte("0")
	if high {
		value = []byte("1")
	}
	if err := os.WriteFile(filepath.Join(g.pinDir(pin), "value"), value, 0o644); err != nil {
		return fmt.Errorf("failed to write gpio %d value: %w", pin, err)
	}
	return nil
}

// Apply drives the line pair for go and stop decisions and leaves the lines
// untouched for noise.
func (g *GPIO) Apply(decision keyword.Decision) error {
	state, change := lineStateFor(decision)
	if !change {
		return nil
	}
	if err := g.writeValue(g.goPin, state.Go); err != nil {
		return errors.New(err).
			Component("actuator").
			Category(errors.CategoryActuator).
			Context("decision", decision.String()).
			Build()
	}
	if err := g.writeValue(g.stopPin, state.Stop); err != nil {
		return errors.New(err).
			Component("actuator").
			Category(errors.CategoryActuator).
			Context("decision", decision.String()).
			Build()
	}
	return nil
}

// Close drives both lines low and unexports the pins.
func (g *GPIO) Close() error {
	var firstErr error
	for _, pin := range []int{g.goPin, g.stopPin} {
		if err := g.writeValue(pin, false); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := os.WriteFile(filepath.Join(g.root, "unexport"), fmt.Appendf(nil, "%d", pin), 0o200); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
