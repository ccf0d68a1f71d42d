package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/itohio/goscale/pkg/button"
)

const (
	// DefaultBaudRate is the bridge firmware's UART rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the number of conversions kept for Read.
	DefaultBufferSize = 4
	// DefaultReadTimeout bounds Read and the freshness of the ready flag.
	DefaultReadTimeout = time.Second
)

// Frame is one line reported by the bridge firmware.
type Frame struct {
	Received  time.Time
	Ready     bool  // Amplifier data ready
	Raw       int32 // Signed 24-bit conversion, valid when Ready
	Tare      bool  // Electrical level of the tare pin
	Calibrate bool  // Electrical level of the calibrate pin
}

// Port describes an available serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a bridge board connected over a serial line.
type Serial struct {
	port        string
	baudRate    int
	readTimeout time.Duration

	conn      serial.Port
	samples   chan int32
	last      Frame
	lastReady time.Time // Receipt of the latest ready frame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// NewSerial creates a board on the given port. Zero values select defaults.
func NewSerial(port string, baudRate int, readTimeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout == 0 {
		readTimeout = DefaultReadTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
		samples:     make(chan int32, DefaultBufferSize),
		last:        releasedFrame(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name
		if d.IsUSB {
			desc = fmt.Sprintf("%s (USB %s:%s %s)", d.Name, d.VID, d.PID, d.Product)
		}
		result = append(result, Port{Name: d.Name, Description: desc})
	}

	return result, nil
}

// Connect opens the serial port and starts reading frames.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	conn, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.attach(conn)
	return nil
}

// attach starts reading frames from an open connection. Must hold mu.
func (d *Serial) attach(conn serial.Port) {
	d.conn = conn
	d.connected = true
	go d.readFrames(conn)
}

// Close closes the connection and stops reading frames.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			logrus.WithError(err).Warn("error closing serial port")
		}
		d.conn = nil
	}

	d.connected = false
	return nil
}

// IsConnected returns whether the board is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// PowerUp drives the amplifier power-enable pin high.
func (d *Serial) PowerUp() error {
	d.forgetReady()
	return d.command("P1")
}

// PowerDown drives the amplifier power-enable pin low.
func (d *Serial) PowerDown() error {
	d.forgetReady()
	return d.command("P0")
}

// IsReady reports whether a ready frame arrived within the read timeout.
// Status frames sent between conversions do not clear readiness.
func (d *Serial) IsReady() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected && !d.lastReady.IsZero() && time.Since(d.lastReady) < d.readTimeout
}

// forgetReady drops readiness seen before a power change.
func (d *Serial) forgetReady() {
	d.mu.Lock()
	d.lastReady = time.Time{}
	d.mu.Unlock()
}

// Read waits for the next ready conversion.
func (d *Serial) Read() (int32, error) {
	if !d.IsConnected() {
		return 0, ErrNotConnected
	}

	t := time.NewTimer(d.readTimeout)
	defer t.Stop()

	select {
	case v := <-d.samples:
		return v, nil
	case <-d.ctx.Done():
		return 0, ErrNotConnected
	case <-t.C:
		return 0, ErrTimeout
	}
}

// TarePin returns the tare button input.
func (d *Serial) TarePin() button.Pin {
	return button.PinFunc(func() bool { return d.Last().Tare })
}

// CalibratePin returns the calibrate button input.
func (d *Serial) CalibratePin() button.Pin {
	return button.PinFunc(func() bool { return d.Last().Calibrate })
}

// Last returns the most recent frame.
func (d *Serial) Last() Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

func (d *Serial) command(cmd string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := d.conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd, err)
	}
	return nil
}

// readFrames reads lines from the serial port and parses them into frames.
func (d *Serial) readFrames(r io.Reader) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.Errorf("panic in readFrames: %v", rec)
		}
	}()

	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				logrus.WithError(err).Error("error reading from serial port")
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		frame, err := parseLine(line)
		if err != nil {
			logrus.WithError(err).Debugf("failed to parse line %q", line)
			continue
		}
		frame.Received = time.Now()
		d.push(frame)
	}
}

// push records the frame and queues its conversion, dropping the oldest
// queued conversion when the consumer lags.
func (d *Serial) push(frame Frame) {
	d.mu.Lock()
	d.last = frame
	if frame.Ready {
		d.lastReady = frame.Received
	}
	d.mu.Unlock()

	if !frame.Ready {
		return
	}

	for {
		select {
		case d.samples <- frame.Raw:
			return
		default:
		}
		select {
		case <-d.samples:
		default:
		}
	}
}

// parseLine parses a line from the bridge firmware into a Frame.
// Format: ready,raw,tare_level,calibrate_level
// Example: 1,-8400,1,0
func parseLine(line string) (Frame, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return Frame{}, fmt.Errorf("invalid line format: expected 4 comma-separated values, got %d", len(parts))
	}

	ready, err := parseBit(parts[0])
	if err != nil {
		return Frame{}, fmt.Errorf("invalid ready flag: %w", err)
	}

	raw, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid reading: %w", err)
	}
	if raw < -(1<<23) || raw >= 1<<23 {
		return Frame{}, fmt.Errorf("reading out of 24-bit range: %d", raw)
	}

	tare, err := parseBit(parts[2])
	if err != nil {
		return Frame{}, fmt.Errorf("invalid tare level: %w", err)
	}

	calibrate, err := parseBit(parts[3])
	if err != nil {
		return Frame{}, fmt.Errorf("invalid calibrate level: %w", err)
	}

	return Frame{
		Ready:     ready,
		Raw:       int32(raw),
		Tare:      tare,
		Calibrate: calibrate,
	}, nil
}

func parseBit(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("expected 0 or 1, got %q", s)
	}
}

// releasedFrame is the state before the first line arrives: both pull-ups high.
func releasedFrame() Frame {
	return Frame{Tare: true, Calibrate: true}
}
