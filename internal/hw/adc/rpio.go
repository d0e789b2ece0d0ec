package adc

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver is the real implementation for an MCP3208 on SPI0 of a Raspberry
// Pi using go-rpio.
type RPiDriver struct {
	mu         sync.Mutex
	chipSelect uint8
}

// NewRPiDriver creates a real ADC driver for Raspberry Pi.
// Requires running on a Raspberry Pi with SPI enabled, as root.
func NewRPiDriver(chipSelect, speedHz int) (*RPiDriver, error) {
	debug.Info("Initializing real ADC driver (go-rpio, MCP3208 on SPI0 CE%d)", chipSelect)

	if chipSelect < 0 || chipSelect > 1 {
		return nil, fmt.Errorf("chip select must be 0 or 1, got %d", chipSelect)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		_ = rpio.Close()
		return nil, fmt.Errorf("failed to begin SPI0: %w", err)
	}
	rpio.SpiSpeed(speedHz)
	rpio.SpiChipSelect(uint8(chipSelect))
	rpio.SpiMode(0, 0)

	debug.Verbose("SPI0 ready at %d Hz", speedHz)

	return &RPiDriver{chipSelect: uint8(chipSelect)}, nil
}

// Read performs one single-ended conversion.
func (r *RPiDriver) Read(channel int) (uint16, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	buf := request(channel)

	r.mu.Lock()
	rpio.SpiChipSelect(r.chipSelect)
	rpio.SpiExchange(buf)
	r.mu.Unlock()

	v := response(buf)
	debug.ADC(channel, v)
	return v, nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("ADC Close (real driver)")
	rpio.SpiEnd(rpio.Spi0)
	return rpio.Close()
}

// request builds the 3-byte MCP3208 frame: start bit, single-ended mode,
// 3-bit channel, then clocks for the 12-bit result.
func request(channel int) []byte {
	ch := byte(channel)
	return []byte{0x06 | ch>>2, (ch & 0x03) << 6, 0x00}
}

// response extracts the 12-bit conversion from an exchanged frame.
func response(buf []byte) uint16 {
	return uint16(buf[1]&0x0F)<<8 | uint16(buf[2])
}
