// Package wlrrandr switches a wayland output on and off through the wlr-randr tool
package wlrrandr

import (
	"encoding/json"
	"fmt"
	"os/exec"
)

const DefaultOutputName = "HDMI-A-1"

// Output is the part of a wlr-randr --json entry the controller reads.
type Output struct {
	Name     string   `json:"name"`
	Enabled  bool     `json:"enabled"`
	Modes    []Mode   `json:"modes"`
	Position Position `json:"position"`
	Scale    float64  `json:"scale"`
}

type Mode struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Refresh float64 `json:"refresh"`
	Current bool    `json:"current"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Controller drives one named output.
type Controller struct {
	Output string
}

func New(output string) *Controller {
	if output == "" {
		output = DefaultOutputName
	}
	return &Controller{Output: output}
}

// Enabled inspects the current state of the output using wlr-randr.
func (c *Controller) Enabled() (bool, error) {
	cmd := exec.Command("wlr-randr", "--output", c.Output, "--json")
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to run wlr-randr: %w", err)
	}
	return ParseEnabled(out, c.Output)
}

// ParseEnabled finds the enabled flag of the named output in wlr-randr JSON.
func ParseEnabled(out []byte, name string) (bool, error) {
	var results []Output
	if err := json.Unmarshal(out, &results); err != nil {
		return false, fmt.Errorf("failed to unmarshal wlr-randr output: %w", err)
	}

	for _, result := range results {
		if result.Name == name {
			return result.Enabled, nil
		}
	}

	return false, fmt.Errorf("output %s not found", name)
}

// SetEnabled turns the output on or off using wlr-randr.
func (c *Controller) SetEnabled(enabled bool) error {
	arg := "--off"
	if enabled {
		arg = "--on"
	}
	cmd := exec.Command("wlr-randr", "--output", c.Output, arg)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run wlr-randr: %w", err)
	}
	return nil
}
