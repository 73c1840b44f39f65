package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/touchscope/internal/datascope"
	"github.com/banshee-data/touchscope/internal/scopeuart"
)

// DefaultConfigPath is the path to the canonical defaults file shipped with
// the repository.
const DefaultConfigPath = "config/touchscope.defaults.json"

const (
	defaultPort     = 1
	defaultTxPin    = 17
	defaultRxPin    = 16
	defaultInterval = 20 * time.Millisecond
)

// ScopeConfig is the root configuration for a touchscope run. Fields omitted
// from the JSON file fall back to the defaults returned by the Get* methods.
type ScopeConfig struct {
	// Debug UART
	Port     *int              `json:"port,omitempty"`
	Devices  map[string]string `json:"devices,omitempty"` // UART index -> device path
	TxPin    *int              `json:"tx_pin,omitempty"`
	RxPin    *int              `json:"rx_pin,omitempty"`
	BaudRate *int              `json:"baud_rate,omitempty"`

	// Stream
	Channels *int    `json:"channels,omitempty"`
	Interval *string `json:"interval,omitempty"` // duration string like "20ms"

	// Optional outputs
	CaptureDB *string `json:"capture_db,omitempty"`
	Listen    *string `json:"listen,omitempty"`
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyScopeConfig returns a ScopeConfig with all fields unset.
func EmptyScopeConfig() *ScopeConfig {
	return &ScopeConfig{}
}

// LoadScopeConfig loads a ScopeConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadScopeConfig(path string) (*ScopeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyScopeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent
// directories so tests can call it from any package. Panics on failure.
func MustLoadDefaultConfig() *ScopeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadScopeConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are in range.
func (c *ScopeConfig) Validate() error {
	if c.Port != nil && !scopeuart.ValidPort(*c.Port) {
		return fmt.Errorf("port must be between 0 and %d, got %d", scopeuart.MaxPorts-1, *c.Port)
	}

	for key, path := range c.Devices {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("devices key %q is not a uart index", key)
		}
		if !scopeuart.ValidPort(idx) {
			return fmt.Errorf("devices key %d must be between 0 and %d", idx, scopeuart.MaxPorts-1)
		}
		if path == "" {
			return fmt.Errorf("devices[%d] has an empty path", idx)
		}
	}

	if c.BaudRate != nil && *c.BaudRate < 0 {
		return fmt.Errorf("baud_rate must be non-negative, got %d", *c.BaudRate)
	}

	if c.Channels != nil && !datascope.ValidChannel(*c.Channels) {
		return fmt.Errorf("channels must be between 1 and %d, got %d", datascope.MaxChannels, *c.Channels)
	}

	if c.Interval != nil && *c.Interval != "" {
		d, err := time.ParseDuration(*c.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval '%s': %w", *c.Interval, err)
		}
		if d < 0 {
			return fmt.Errorf("interval must be non-negative, got %s", d)
		}
	}

	return nil
}

// GetPort returns the debug UART index or the default.
func (c *ScopeConfig) GetPort() int {
	if c.Port == nil {
		return defaultPort
	}
	return *c.Port
}

// GetTxPin returns the TX pin or the default.
func (c *ScopeConfig) GetTxPin() int {
	if c.TxPin == nil {
		return defaultTxPin
	}
	return *c.TxPin
}

// GetRxPin returns the RX pin or the default.
func (c *ScopeConfig) GetRxPin() int {
	if c.RxPin == nil {
		return defaultRxPin
	}
	return *c.RxPin
}

// GetBaudRate returns the baud rate or the default.
func (c *ScopeConfig) GetBaudRate() int {
	if c.BaudRate == nil || *c.BaudRate == 0 {
		return scopeuart.DefaultBaudRate
	}
	return *c.BaudRate
}

// GetChannels returns the number of channels per frame or the default.
func (c *ScopeConfig) GetChannels() int {
	if c.Channels == nil {
		return datascope.MaxChannels
	}
	return *c.Channels
}

// GetInterval parses and returns the frame interval.
func (c *ScopeConfig) GetInterval() time.Duration {
	if c.Interval == nil || *c.Interval == "" {
		return defaultInterval
	}
	d, err := time.ParseDuration(*c.Interval)
	if err != nil {
		return defaultInterval // default on parse error
	}
	return d
}

// GetCaptureDB returns the capture database path, or "" when capture is off.
func (c *ScopeConfig) GetCaptureDB() string {
	if c.CaptureDB == nil {
		return ""
	}
	return *c.CaptureDB
}

// GetListen returns the admin listen address, or "" when disabled.
func (c *ScopeConfig) GetListen() string {
	if c.Listen == nil {
		return ""
	}
	return *c.Listen
}

// PortTable converts the devices map into a scopeuart.PortTable. Invalid
// keys are skipped; Validate reports them.
func (c *ScopeConfig) PortTable() scopeuart.PortTable {
	table := make(scopeuart.PortTable, len(c.Devices))
	for key, path := range c.Devices {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		table[idx] = path
	}
	return table
}

// UARTConfig returns the transport configuration.
func (c *ScopeConfig) UARTConfig() scopeuart.Config {
	return scopeuart.Config{
		Port:     c.GetPort(),
		TxPin:    c.GetTxPin(),
		RxPin:    c.GetRxPin(),
		BaudRate: c.GetBaudRate(),
	}
}

// SetDevice maps a UART index to a device path, replacing any existing entry.
func (c *ScopeConfig) SetDevice(port int, path string) {
	if c.Devices == nil {
		c.Devices = make(map[string]string)
	}
	c.Devices[strconv.Itoa(port)] = path
}
