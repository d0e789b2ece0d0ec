package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Must not panic; the result is OS-dependent.
	_ = ValidateConfigPath(long)
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
ble:
  device_names: ["BMPCC4K", "BMPCC6K"]
  scan_duration_s: 8
  mock: true
sensors:
  mock: true
  spi_chip_select: 1
  spi_speed_hz: 500000
  encoder_channel: 2
  poti_channel: 3
focus:
  encoder_degrees: 720
  sensitivity: 2.5
  synchronized: true
  tick_ms: 25
defaults:
  debug_level: 3
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.BLE.DeviceNames) != 2 || cfg.BLE.DeviceNames[1] != "BMPCC6K" {
		t.Errorf("ble.device_names = %v, want [BMPCC4K BMPCC6K]", cfg.BLE.DeviceNames)
	}
	if cfg.BLE.ScanDurationS != 8 {
		t.Errorf("ble.scan_duration_s = %d, want 8", cfg.BLE.ScanDurationS)
	}
	if !cfg.BLE.Mock || !cfg.Sensors.Mock {
		t.Error("mock flags should be true")
	}
	if cfg.Sensors.SPIChipSelect != 1 || cfg.Sensors.SPISpeedHz != 500000 {
		t.Errorf("spi = cs%d @ %dHz, want cs1 @ 500000Hz", cfg.Sensors.SPIChipSelect, cfg.Sensors.SPISpeedHz)
	}
	if cfg.Sensors.EncoderChannel != 2 || cfg.Sensors.PotiChannel != 3 {
		t.Errorf("channels = %d/%d, want 2/3", cfg.Sensors.EncoderChannel, cfg.Sensors.PotiChannel)
	}
	if cfg.Focus.EncoderDegrees != 720 {
		t.Errorf("focus.encoder_degrees = %d, want 720", cfg.Focus.EncoderDegrees)
	}
	if cfg.Focus.Sensitivity != 2.5 {
		t.Errorf("focus.sensitivity = %v, want 2.5", cfg.Focus.Sensitivity)
	}
	if !cfg.Focus.Synchronized {
		t.Error("focus.synchronized should be true")
	}
	if cfg.Focus.TickMs != 25 {
		t.Errorf("focus.tick_ms = %d, want 25", cfg.Focus.TickMs)
	}
	if cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug_level = %d, want 3", cfg.Defaults.DebugLevel)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "defaults:\n  debug_level: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.BLE.DeviceNames) != 1 || cfg.BLE.DeviceNames[0] != "BMPCC4K" {
		t.Errorf("device_names default = %v, want [BMPCC4K]", cfg.BLE.DeviceNames)
	}
	if cfg.BLE.ScanDurationS != 5 {
		t.Errorf("scan_duration_s default = %d, want 5", cfg.BLE.ScanDurationS)
	}
	if cfg.Sensors.SPISpeedHz != 1_000_000 {
		t.Errorf("spi_speed_hz default = %d, want 1000000", cfg.Sensors.SPISpeedHz)
	}
	if cfg.Sensors.EncoderChannel != 0 || cfg.Sensors.PotiChannel != 1 {
		t.Errorf("channels default = %d/%d, want 0/1", cfg.Sensors.EncoderChannel, cfg.Sensors.PotiChannel)
	}
	if cfg.Focus.EncoderDegrees != 360 {
		t.Errorf("encoder_degrees default = %d, want 360", cfg.Focus.EncoderDegrees)
	}
	if cfg.Focus.Sensitivity != 1.0 {
		t.Errorf("sensitivity default = %v, want 1.0", cfg.Focus.Sensitivity)
	}
	if cfg.Focus.Synchronized {
		t.Error("synchronized default should be false")
	}
	if cfg.Focus.TickMs != 20 {
		t.Errorf("tick_ms default = %d, want 20", cfg.Focus.TickMs)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("empty config should load with defaults, got: %v", err)
	}
	if cfg.Focus.EncoderDegrees != 360 {
		t.Errorf("encoder_degrees = %d, want 360", cfg.Focus.EncoderDegrees)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"negative_encoder_degrees", "focus:\n  encoder_degrees: -90\n"},
		{"negative_sensitivity", "focus:\n  sensitivity: -1.0\n"},
		{"nan_sensitivity", "focus:\n  sensitivity: .nan\n"},
		{"inf_sensitivity", "focus:\n  sensitivity: .inf\n"},
		{"debug_level_too_high", "defaults:\n  debug_level: 5\n"},
		{"debug_level_negative", "defaults:\n  debug_level: -1\n"},
		{"chip_select_2", "sensors:\n  spi_chip_select: 2\n"},
		{"channel_8", "sensors:\n  encoder_channel: 8\n"},
		{"channel_negative", "sensors:\n  poti_channel: -1\n"},
		{"same_channels", "sensors:\n  encoder_channel: 4\n  poti_channel: 4\n"},
		{"empty_device_name", "ble:\n  device_names: [\"\"]\n"},
		{"tick_ms_too_fast", "focus:\n  tick_ms: 5\n"},
		{"tick_ms_negative", "focus:\n  tick_ms: -20\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
focus:
  sensitivity: 1.5
unknown_section:
  foo: bar
`
	path := writeConfig(t, yaml)
	if _, err := Load(path); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "nonexistent.yaml")
	if _, err := Load(path); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- Helper methods ----------

func TestConfig_ScanDuration(t *testing.T) {
	cfg := &Config{BLE: BLEConfig{ScanDurationS: 5}}
	if got, want := cfg.ScanDuration(), 5*time.Second; got != want {
		t.Errorf("ScanDuration() = %v, want %v", got, want)
	}
}

func TestConfig_TickInterval(t *testing.T) {
	cfg := &Config{Focus: FocusConfig{TickMs: 20}}
	if got, want := cfg.TickInterval(), 20*time.Millisecond; got != want {
		t.Errorf("TickInterval() = %v, want %v", got, want)
	}
}

func TestLoad_TickMsBelowFiftyHertzRejected(t *testing.T) {
	path := writeConfig(t, "focus:\n  tick_ms: 5\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("tick_ms: 5 should be rejected")
	}
	if !strings.Contains(err.Error(), "tick_ms") {
		t.Errorf("error = %v, want it to name tick_ms", err)
	}

	path = writeConfig(t, "focus:\n  tick_ms: 20\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("tick_ms: 20: %v", err)
	}
	if cfg.TickInterval() != 20*time.Millisecond {
		t.Errorf("TickInterval() = %v, want 20ms", cfg.TickInterval())
	}
}

func TestConfig_AcceptsDevice(t *testing.T) {
	cfg := &Config{BLE: BLEConfig{DeviceNames: []string{"BMPCC4K", "BMPCC6K"}}}
	cases := []struct {
		name string
		want bool
	}{
		{"BMPCC4K", true},
		{"BMPCC6K", true},
		{"bmpcc4k", false},
		{"BMPCC4K ", false},
		{"", false},
		{"Pocket Cinema", false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q", tc.name), func(t *testing.T) {
			if got := cfg.AcceptsDevice(tc.name); got != tc.want {
				t.Errorf("AcceptsDevice(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}
