// internal/config/config.go

// Package config loads line profiles for the host tools. A profile names a
// serial line and the USART parameters used on both ends of it:
//
//	profiles:
//	  - name: bench
//	    port: /dev/ttyUSB0
//	    baud: 115200
//	    word_length: 8
//	    stop_bits: 1
//	    parity: none
//	    mode: tx_rx
//	    flow_control: none
//	    timeout: 250ms
//	    clock_hz: 48000000
//
// Omitted fields take the defaults of usart.DefaultConfig, a 100ms timeout
// and a 48 MHz bus clock.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jangala-dev/tinygo-usart/usart"
)

const (
	DefaultTimeout = 100 * time.Millisecond
	DefaultClockHz = 48_000_000
)

// ErrNoProfile is returned by Lookup for an unknown profile name.
var ErrNoProfile = errors.New("config: no such profile")

// Profile is one named line.
type Profile struct {
	Name        string            `yaml:"name"`
	Port        string            `yaml:"port,omitempty"`
	Baud        uint32            `yaml:"baud,omitempty"`
	WordLength  usart.WordLength  `yaml:"word_length"`
	StopBits    usart.StopBits    `yaml:"stop_bits"`
	Parity      usart.Parity      `yaml:"parity"`
	Mode        usart.Mode        `yaml:"mode,omitempty"`
	FlowControl usart.FlowControl `yaml:"flow_control"`
	Timeout     time.Duration     `yaml:"timeout,omitempty"`
	ClockHz     uint32            `yaml:"clock_hz,omitempty"`
}

// File is the top level of a profile document.
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// Default returns the profile used when no file is given.
func Default() Profile {
	p := Profile{Name: "default"}
	p.applyDefaults()
	return p
}

// Load reads and validates a profile file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a profile document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Profiles) == 0 {
		return nil, errors.New("no profiles defined")
	}
	seen := make(map[string]bool, len(f.Profiles))
	for i := range f.Profiles {
		p := &f.Profiles[i]
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d: missing name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("profile %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}
	return &f, nil
}

// Lookup returns the named profile, or the first one when name is empty.
func (f *File) Lookup(name string) (Profile, error) {
	if name == "" {
		return f.Profiles[0], nil
	}
	for _, p := range f.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrNoProfile, name)
}

func (p *Profile) applyDefaults() {
	d := usart.DefaultConfig()
	if p.Baud == 0 {
		p.Baud = d.BaudRate
	}
	if p.Mode == 0 {
		p.Mode = d.Mode
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.ClockHz == 0 {
		p.ClockHz = DefaultClockHz
	}
}

// Validate checks the line parameters and that the divisor fits BRR.
func (p Profile) Validate() error {
	if err := p.LineConfig().Validate(); err != nil {
		return err
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", usart.ErrParameter)
	}
	return usart.CheckDivisor(p.ClockHz, p.Baud)
}

// LineConfig converts the profile into engine configuration.
func (p Profile) LineConfig() usart.Config {
	return usart.Config{
		BaudRate:    p.Baud,
		WordLength:  p.WordLength,
		StopBits:    p.StopBits,
		Parity:      p.Parity,
		Mode:        p.Mode,
		FlowControl: p.FlowControl,
	}
}

// TimeoutMillis returns the blocking budget in engine milliseconds.
func (p Profile) TimeoutMillis() uint32 {
	ms := p.Timeout.Milliseconds()
	if ms >= int64(usart.MaxDelay) {
		return usart.MaxDelay - 1
	}
	return uint32(ms)
}
