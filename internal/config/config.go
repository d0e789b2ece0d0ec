package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file accepted by Load.
const MaxConfigFileBytes = 64 * 1024

// MinTickMs is the shortest fusion interval (50Hz) and the default.
const MinTickMs = 20

// BLEConfig describes how cameras are discovered over Bluetooth Low Energy.
type BLEConfig struct {
	DeviceNames   []string `yaml:"device_names"`    // advertised names accepted during scan, e.g. "BMPCC4K"
	ScanDurationS int      `yaml:"scan_duration_s"` // scan window per connect request (s)
	Mock          bool     `yaml:"mock"`            // simulated cameras instead of the radio
}

// SensorConfig describes the MCP3208 ADC wiring of the encoder and potentiometer.
type SensorConfig struct {
	Mock           bool `yaml:"mock"`            // use mock ADC (true=dev/test, false=real Raspberry Pi)
	SPIChipSelect  int  `yaml:"spi_chip_select"` // CE0 or CE1
	SPISpeedHz     int  `yaml:"spi_speed_hz"`
	EncoderChannel int  `yaml:"encoder_channel"` // AS5600 OUT pin (analog mode)
	PotiChannel    int  `yaml:"poti_channel"`
}

// FocusConfig holds the initial focus settings and loop cadence.
type FocusConfig struct {
	EncoderDegrees int     `yaml:"encoder_degrees"` // encoder rotation mapped to a full focus throw
	Sensitivity    float64 `yaml:"sensitivity"`
	Synchronized   bool    `yaml:"synchronized"`
	TickMs         int     `yaml:"tick_ms"` // minimum interval between fusion ticks (ms)
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	BLE      BLEConfig      `yaml:"ble"`
	Sensors  SensorConfig   `yaml:"sensors"`
	Focus    FocusConfig    `yaml:"focus"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path is a .yaml file located directly
// inside a "configs" directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path must end with .yaml: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be inside a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if len(c.BLE.DeviceNames) == 0 {
		c.BLE.DeviceNames = []string{"BMPCC4K"}
	}
	for _, name := range c.BLE.DeviceNames {
		if name == "" {
			return fmt.Errorf("ble.device_names must not contain empty names")
		}
	}
	if c.BLE.ScanDurationS <= 0 {
		c.BLE.ScanDurationS = 5
	}

	if c.Sensors.SPIChipSelect < 0 || c.Sensors.SPIChipSelect > 1 {
		return fmt.Errorf("sensors.spi_chip_select must be 0 or 1, got %d", c.Sensors.SPIChipSelect)
	}
	if c.Sensors.SPISpeedHz <= 0 {
		c.Sensors.SPISpeedHz = 1_000_000 // MCP3208 at 3.3V
	}
	for name, ch := range map[string]int{
		"encoder_channel": c.Sensors.EncoderChannel,
		"poti_channel":    c.Sensors.PotiChannel,
	} {
		if ch < 0 || ch > 7 {
			return fmt.Errorf("sensors.%s must be between 0 and 7, got %d", name, ch)
		}
	}
	if c.Sensors.EncoderChannel == 0 && c.Sensors.PotiChannel == 0 {
		c.Sensors.PotiChannel = 1
	}
	if c.Sensors.EncoderChannel == c.Sensors.PotiChannel {
		return fmt.Errorf("sensors.encoder_channel and sensors.poti_channel must differ, both are %d", c.Sensors.PotiChannel)
	}

	if c.Focus.EncoderDegrees < 0 {
		return fmt.Errorf("focus.encoder_degrees must be > 0, got %d", c.Focus.EncoderDegrees)
	}
	if c.Focus.EncoderDegrees == 0 {
		c.Focus.EncoderDegrees = 360
	}
	if math.IsNaN(c.Focus.Sensitivity) || math.IsInf(c.Focus.Sensitivity, 0) || c.Focus.Sensitivity < 0 {
		return fmt.Errorf("focus.sensitivity must be a finite value >= 0, got %g", c.Focus.Sensitivity)
	}
	if c.Focus.Sensitivity == 0 {
		c.Focus.Sensitivity = 1.0
	}
	if c.Focus.TickMs == 0 {
		c.Focus.TickMs = MinTickMs
	}
	if c.Focus.TickMs < MinTickMs {
		return fmt.Errorf("focus.tick_ms must be >= %d, got %d", MinTickMs, c.Focus.TickMs)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// ScanDuration returns the BLE scan window.
func (c *Config) ScanDuration() time.Duration {
	return time.Duration(c.BLE.ScanDurationS) * time.Second
}

// TickInterval returns the minimum interval between two fusion ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Focus.TickMs) * time.Millisecond
}

// AcceptsDevice reports whether an advertised name belongs to a camera we drive.
func (c *Config) AcceptsDevice(name string) bool {
	for _, n := range c.BLE.DeviceNames {
		if n == name {
			return true
		}
	}
	return false
}
