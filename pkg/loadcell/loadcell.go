package loadcell

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrHardwareNotReady is returned when the amplifier does not report ready
// within the retry budget after power-up.
var ErrHardwareNotReady = errors.New("load cell amplifier not ready")

// Amplifier is the load-cell amplifier driver.
type Amplifier interface {
	PowerUp() error
	PowerDown() error
	IsReady() bool
	// Read blocks until the next conversion and returns the signed raw count.
	Read() (int32, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options configures power-up timing.
type Options struct {
	Settle          time.Duration
	ReadyRetries    int
	ReadyRetryDelay time.Duration
	Sleep           Sleeper // Defaults to Sleep
}

// Scale turns raw amplifier counts into tare-corrected raw values and masses.
// Not safe for concurrent use; the measurement loop owns it.
type Scale struct {
	amp  Amplifier
	opts Options

	offset      float64
	sensitivity float32
}

// New creates a Scale with a 1:1 sensitivity and a zero offset.
func New(amp Amplifier, opts Options) *Scale {
	if opts.ReadyRetries <= 0 {
		opts.ReadyRetries = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &Scale{
		amp:         amp,
		opts:        opts,
		sensitivity: 1,
	}
}

// Initialize powers the amplifier, waits for it to settle and polls readiness.
// It returns ErrHardwareNotReady once the retry budget is spent.
func (s *Scale) Initialize(ctx context.Context) error {
	if err := s.amp.PowerUp(); err != nil {
		return fmt.Errorf("failed to power up amplifier: %w", err)
	}

	if err := s.opts.Sleep(ctx, s.opts.Settle); err != nil {
		return err
	}

	for attempt := range s.opts.ReadyRetries {
		if s.amp.IsReady() {
			return nil
		}
		if attempt == s.opts.ReadyRetries-1 {
			break
		}
		if err := s.opts.Sleep(ctx, s.opts.ReadyRetryDelay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrHardwareNotReady, s.opts.ReadyRetries)
}

// ReadRaw returns the average of n conversions minus the tare offset.
func (s *Scale) ReadRaw(n int) (float64, error) {
	avg, err := s.average(n)
	if err != nil {
		return 0, err
	}
	return avg - s.offset, nil
}

// ReadMass returns ReadRaw(n) divided by the sensitivity.
func (s *Scale) ReadMass(n int) (float64, error) {
	raw, err := s.ReadRaw(n)
	if err != nil {
		return 0, err
	}
	return raw / float64(s.sensitivity), nil
}

// Tare makes the average of n conversions the new zero.
func (s *Scale) Tare(n int) error {
	avg, err := s.average(n)
	if err != nil {
		return fmt.Errorf("failed to tare: %w", err)
	}
	s.offset = avg
	return nil
}

// SetSensitivity replaces the raw-counts-per-unit divisor.
func (s *Scale) SetSensitivity(v float32) {
	s.sensitivity = v
}

// Sensitivity returns the divisor in effect.
func (s *Scale) Sensitivity() float32 {
	return s.sensitivity
}

// Offset returns the tare offset in raw counts.
func (s *Scale) Offset() float64 {
	return s.offset
}

// PowerDown powers the amplifier down.
func (s *Scale) PowerDown() error {
	return s.amp.PowerDown()
}

func (s *Scale) average(n int) (float64, error) {
	if n < 1 {
		n = 1
	}

	var sum int64
	for range n {
		v, err := s.amp.Read()
		if err != nil {
			return 0, fmt.Errorf("failed to read amplifier: %w", err)
		}
		sum += int64(v)
	}

	return float64(sum) / float64(n), nil
}
