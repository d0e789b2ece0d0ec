package debug

import (
	"io"
	"log"
	"os"
	"sync"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (cameras connected, settings changes)
	LevelLive    = 2 // Live info (commands sent, pairing transitions)
	LevelVerbose = 3 // Verbose (per-tick focus deltas, setup details)
	LevelTrace   = 4 // Trace (raw packets, ADC samples)
)

var (
	mu     sync.RWMutex
	level  int
	out    io.Writer = os.Stdout
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (cameras, settings)
// 2 = live info (commands, pairing)
// 3 = verbose (focus ticks, setup)
// 4 = trace (packets, sensor samples)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	logger = nil
	if level > LevelOff {
		logger = log.New(out, "[BMFocus] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output (e.g. to stdout plus the web broadcaster).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

func printf(minLevel int, format string, args ...interface{}) {
	mu.RLock()
	l := logger
	enabled := level >= minLevel
	mu.RUnlock()
	if enabled && l != nil {
		l.Printf(format, args...)
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	printf(LevelInfo, "[INFO] "+format, args...)
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	printf(LevelInfo, "═══════════════════════════════════════")
	printf(LevelInfo, "  %s", title)
	printf(LevelInfo, "═══════════════════════════════════════")
}

// Camera prints a camera lifecycle event (level 1).
func Camera(index int, name, event string) {
	printf(LevelInfo, "[INFO] Camera #%d %q: %s", index, name, event)
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	printf(LevelInfo, "[INFO]   %s = %v", name, value)
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	printf(LevelLive, "[LIVE] "+format, args...)
}

// Command prints an outgoing camera command (level 2).
func Command(camera, op string, value interface{}) {
	printf(LevelLive, "[LIVE] %s -> %s(%v)", camera, op, value)
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	printf(LevelVerbose, "[VERBOSE] "+format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	printf(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// Section prints a section separator (level 3).
func Section(name string) {
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	printf(LevelVerbose, "  %s", name)
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	printf(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

// Focus prints one fusion tick (level 3).
func Focus(encoderDelta, potiDelta, focusDelta float64, targets int) {
	printf(LevelVerbose, "[VERBOSE] Focus: encoder=%+.3f° poti=%+.4f -> delta=%+.5f (%d target(s))",
		encoderDelta, potiDelta, focusDelta, targets)
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	printf(LevelTrace, "[TRACE] "+format, args...)
}

// Packet prints a raw BLE packet (level 4).
func Packet(direction string, data []byte) {
	if IsEnabled(LevelTrace) {
		printf(LevelTrace, "[BLE] %s % x", direction, data)
	}
}

// ADC prints a raw converter sample (level 4).
func ADC(channel int, raw uint16) {
	printf(LevelTrace, "[ADC] channel=%d raw=%d", channel, raw)
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	printf(LevelInfo, "[ERROR] %v", err)
}

