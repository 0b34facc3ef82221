package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/toglayer/internal/ir"
)

// DefaultKeycode is the ordinary key a tap step produces when none is given.
const DefaultKeycode uint32 = 0x04

// Scenario is a harness test: a configuration, a timed flow of input
// steps and assertions on the resulting trace and layer state.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the CUE configuration directory, relative to the
	// scenario file.
	Config string `yaml:"config"`

	// Session is an optional fixed session token. Defaults to
	// "test-session-default" for deterministic golden comparison.
	Session string `yaml:"session,omitempty"`

	Flow       []Step      `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// Script is a timed flow of input steps without assertions, replayed by
// the run command.
type Script struct {
	Name string `yaml:"name"`
	Flow []Step `yaml:"flow"`
}

// Step is one timed input. Exactly one action field is set.
type Step struct {
	// At is the virtual timestamp in milliseconds. Steps are
	// non-decreasing in At.
	At int64 `yaml:"at"`

	Press    *PressStep    `yaml:"press,omitempty"`
	Tap      *TapStep      `yaml:"tap,omitempty"`
	Position *PositionStep `yaml:"position,omitempty"`
	Keycode  *KeycodeStep  `yaml:"keycode,omitempty"`
	Move     bool          `yaml:"move,omitempty"`
	Idle     bool          `yaml:"idle,omitempty"`
}

// PressStep presses a toggle binding, either by binding name or by
// behavior instance and layer.
type PressStep struct {
	Binding  string `yaml:"binding,omitempty"`
	Behavior string `yaml:"behavior,omitempty"`
	Layer    *int   `yaml:"layer,omitempty"`
}

// TapStep presses and releases a key position that produces an ordinary
// (or given) keycode.
type TapStep struct {
	Position  uint32  `yaml:"position"`
	Keycode   *uint32 `yaml:"keycode,omitempty"`
	UsagePage *uint16 `yaml:"usage_page,omitempty"`
}

// PositionStep is a bare position event. Pressed defaults to true.
type PositionStep struct {
	Position uint32 `yaml:"position"`
	Pressed  *bool  `yaml:"pressed,omitempty"`
}

// KeycodeStep is a bare keycode event. Pressed defaults to true and the
// usage page to the HID keyboard page.
type KeycodeStep struct {
	Keycode   uint32  `yaml:"keycode"`
	UsagePage *uint16 `yaml:"usage_page,omitempty"`
	Pressed   *bool   `yaml:"pressed,omitempty"`
}

// Assertion type constants.
const (
	AssertLayerActive   = "layer_active"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
	AssertActivateCount = "activate_count"
)

// Assertion validates the trace or final layer state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the transition kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Instance narrows trace matches to one behavior instance.
	Instance string `yaml:"instance,omitempty"`

	// Layer is the layer id (layer_active, activate_count) or a
	// trace_contains filter.
	Layer *int `yaml:"layer,omitempty"`

	// Position narrows trace_contains to transitions caused by it.
	Position *int `yaml:"position,omitempty"`

	// Timestamp narrows trace_contains to one virtual time.
	Timestamp *int64 `yaml:"timestamp,omitempty"`

	// Active is the expected layer state (layer_active).
	Active *bool `yaml:"active,omitempty"`

	// Count is the expected number of matches (trace_count, activate_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected relative order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The config path is
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScript reads and parses an input script YAML file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(script.Flow) == 0 {
		return nil, fmt.Errorf("invalid script: flow list is required and must be non-empty")
	}
	if err := validateFlow(script.Flow); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	return &script, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if _, err := os.Stat(s.Config); os.IsNotExist(err) {
		return fmt.Errorf("config directory not found: %s", s.Config)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if err := validateFlow(s.Flow); err != nil {
		return err
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

func validateFlow(flow []Step) error {
	var last int64
	for i, step := range flow {
		if step.At < last {
			return fmt.Errorf("flow[%d]: at %d is before previous step at %d", i, step.At, last)
		}
		last = step.At

		if n := step.actionCount(); n != 1 {
			return fmt.Errorf("flow[%d]: exactly one of press, tap, position, keycode, move, idle is required, got %d", i, n)
		}

		if p := step.Press; p != nil {
			switch {
			case p.Binding != "" && (p.Behavior != "" || p.Layer != nil):
				return fmt.Errorf("flow[%d].press: binding excludes behavior and layer", i)
			case p.Binding == "" && (p.Behavior == "" || p.Layer == nil):
				return fmt.Errorf("flow[%d].press: binding or behavior and layer is required", i)
			case p.Layer != nil && (*p.Layer < 0 || *p.Layer > 255):
				return fmt.Errorf("flow[%d].press: layer %d out of range", i, *p.Layer)
			}
		}
	}
	return nil
}

func (s Step) actionCount() int {
	n := 0
	for _, set := range []bool{s.Press != nil, s.Tap != nil, s.Position != nil, s.Keycode != nil, s.Move, s.Idle} {
		if set {
			n++
		}
	}
	return n
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertLayerActive:
		if a.Layer == nil || a.Active == nil {
			return fmt.Errorf("assertions[%d]: layer and active are required for layer_active", index)
		}
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertActivateCount:
		if a.Layer == nil {
			return fmt.Errorf("assertions[%d]: layer is required for activate_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for activate_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// Events expands a step into the engine events it produces, in dispatch
// order. Press steps naming a binding are resolved against cfg.
func (s Step) Events(cfg *ir.KeymapConfig) ([]ir.Event, error) {
	ts := ir.Timestamp(s.At)

	switch {
	case s.Press != nil:
		instance, layer, err := s.Press.resolve(cfg)
		if err != nil {
			return nil, err
		}
		return []ir.Event{ir.NewBindingEvent(instance, layer, ts)}, nil

	case s.Tap != nil:
		keycode := DefaultKeycode
		if s.Tap.Keycode != nil {
			keycode = *s.Tap.Keycode
		}
		page := ir.UsagePageKeyboard
		if s.Tap.UsagePage != nil {
			page = *s.Tap.UsagePage
		}
		pos := ir.Position(s.Tap.Position)
		return []ir.Event{
			ir.NewPositionEvent(pos, true, ts),
			ir.NewKeycodeEvent(page, keycode, true, ts),
			ir.NewPositionEvent(pos, false, ts),
			ir.NewKeycodeEvent(page, keycode, false, ts),
		}, nil

	case s.Position != nil:
		return []ir.Event{ir.NewPositionEvent(ir.Position(s.Position.Position), boolOr(s.Position.Pressed, true), ts)}, nil

	case s.Keycode != nil:
		page := ir.UsagePageKeyboard
		if s.Keycode.UsagePage != nil {
			page = *s.Keycode.UsagePage
		}
		return []ir.Event{ir.NewKeycodeEvent(page, s.Keycode.Keycode, boolOr(s.Keycode.Pressed, true), ts)}, nil

	case s.Move:
		return []ir.Event{ir.NewMovementEvent(ts)}, nil

	default:
		// idle only advances time
		return nil, nil
	}
}

func (p *PressStep) resolve(cfg *ir.KeymapConfig) (ir.InstanceID, ir.LayerID, error) {
	if p.Binding == "" {
		return ir.InstanceID(p.Behavior), ir.LayerID(*p.Layer), nil
	}
	b, ok := cfg.Binding(p.Binding)
	if !ok {
		return "", 0, fmt.Errorf("unknown binding %q", p.Binding)
	}
	return b.Behavior, b.Layer, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
