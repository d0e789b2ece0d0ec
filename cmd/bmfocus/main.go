package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/BMFocus/internal/config"
	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/cjeanneret/BMFocus/internal/hw/adc"
	"github.com/cjeanneret/BMFocus/internal/hw/ble"
	"github.com/cjeanneret/BMFocus/internal/hw/camera"
	"github.com/cjeanneret/BMFocus/internal/hw/sensor"
	"github.com/cjeanneret/BMFocus/internal/logic/control"
	"github.com/cjeanneret/BMFocus/internal/logic/focus"
	"github.com/cjeanneret/BMFocus/internal/web"
)

// simScanDelay mimics a short scan window in mock mode.
const simScanDelay = 500 * time.Millisecond

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	sensitivity := flag.Float64("sensitivity", 0, "override focus sensitivity (0 = config value)")
	encoderDegrees := flag.Int("encoder_degrees", 0, "override encoder degrees per focus throw (0 = config value)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*sensitivity, *encoderDegrees); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *sensitivity, *encoderDegrees)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", debug.Level())

	if err := run(ctx, cfg, webPort.port()); err != nil {
		log.Fatalf("%v", err)
	}
	debug.Section("Shutdown complete")
}

// run wires the controller and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, port int) error {
	debug.Step(1, "Initializing ADC driver")
	debug.Value("Mock ADC", cfg.Sensors.Mock)
	driver, err := adc.NewDriver(cfg.Sensors.Mock, cfg.Sensors.SPIChipSelect, cfg.Sensors.SPISpeedHz)
	if err != nil {
		return fmt.Errorf("init ADC failed: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Printf("closing ADC driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing sensors")
	encoder := sensor.NewEncoder(driver, cfg.Sensors.EncoderChannel)
	poti := sensor.NewPotentiometer(driver, cfg.Sensors.PotiChannel)
	debug.PrintStruct("Sensor config", cfg.Sensors)

	debug.Step(3, "Initializing focus settings")
	settings, err := newSettings(cfg.Focus)
	if err != nil {
		return err
	}
	debug.PrintStruct("Focus settings", settings.Snapshot())

	debug.Step(4, "Initializing camera registry")
	cameras := camera.NewRegistry()
	defer func() {
		if err := cameras.Close(); err != nil {
			log.Printf("closing cameras failed: %v", err)
		}
	}()
	scanner := newDiscoverer(cfg.BLE, cfg.ScanDuration())
	debug.Value("Mock BLE", cfg.BLE.Mock)
	debug.Value("Accepted cameras", cfg.BLE.DeviceNames)

	broadcaster := web.NewStatusBroadcaster()
	ctrl := control.NewHandler(cameras, settings, scanner, cfg.AcceptsDevice, broadcaster)
	defer ctrl.Wait()

	debug.Step(5, "Starting focus loop")
	loop := focus.NewLoop(encoder, poti, settings, cameras, cfg.TickInterval())
	ctx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	debug.Summary(fmt.Sprintf("BMFocus ready: %d ms ticks, sync=%v", cfg.Focus.TickMs, settings.Synchronized()))

	if port > 0 {
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		srv, err := web.NewServer(ctx, fmt.Sprintf(":%d", port), broadcaster, ctrl)
		if err != nil {
			return err
		}
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	}

	// Headless: nothing can send connect_camera, so scan once at startup.
	debug.Info("No web server; scanning for a camera")
	if err := ctrl.ConnectCamera(ctx); err != nil {
		return fmt.Errorf("connect camera: %w", err)
	}
	<-ctx.Done()
	return nil
}

// newSettings builds the runtime focus settings from config.
func newSettings(fc config.FocusConfig) (*focus.Settings, error) {
	s := focus.NewSettings()
	if err := s.SetEncoderDegrees(fc.EncoderDegrees); err != nil {
		return nil, err
	}
	if err := s.SetSensitivity(fc.Sensitivity); err != nil {
		return nil, err
	}
	s.SetSynchronized(fc.Synchronized)
	return s, nil
}

// newDiscoverer selects the BLE stack: simulated cameras in mock mode,
// the host adapter otherwise.
func newDiscoverer(bc config.BLEConfig, scan time.Duration) ble.Discoverer {
	if bc.Mock {
		debug.Info("Using MOCK BLE stack (simulated cameras)")
		return ble.NewSimScanner(bc.DeviceNames, simScanDelay)
	}
	return ble.NewScanner(scan)
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(sensitivity float64, encoderDegrees int) error {
	if err := focus.CheckSensitivity(sensitivity); err != nil {
		return err
	}
	if encoderDegrees < 0 {
		return fmt.Errorf("encoder_degrees must be > 0, got %d", encoderDegrees)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, sensitivity float64, encoderDegrees int) {
	if sensitivity > 0 {
		cfg.Focus.Sensitivity = sensitivity
	}
	if encoderDegrees > 0 {
		cfg.Focus.EncoderDegrees = encoderDegrees
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
