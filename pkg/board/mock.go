package board

import (
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/goscale/pkg/button"
	"github.com/itohio/goscale/pkg/config"
)

// Mock simulates a scale board for testing and development.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.RWMutex
	connected bool
	powered   bool
	poweredAt time.Time

	// Simulation state
	load       float64 // Mass on the platform (units)
	phase      float32 // Noise phase
	tareLevel  bool
	calibLevel bool
	sleep      func(time.Duration)
}

// NewMock creates a new simulated board.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	return &Mock{
		cfg:        cfg,
		load:       cfg.Load,
		tareLevel:  true,
		calibLevel: true,
		sleep:      time.Sleep,
	}
}

// Connect simulates connecting to the board.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close stops the simulated board.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.powered = false
	return nil
}

// IsConnected returns whether the board is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// PowerUp starts the simulated amplifier.
func (m *Mock) PowerUp() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if !m.powered {
		m.powered = true
		m.poweredAt = time.Now()
	}
	return nil
}

// PowerDown stops the simulated amplifier.
func (m *Mock) PowerDown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.powered = false
	return nil
}

// IsReady reports whether the amplifier has been powered for ReadyAfter.
func (m *Mock) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected && m.powered && time.Since(m.poweredAt) >= m.cfg.ReadyAfter
}

// Read waits one conversion period and returns a simulated raw count.
func (m *Mock) Read() (int32, error) {
	m.mu.RLock()
	connected, powered, sleep := m.connected, m.powered, m.sleep
	m.mu.RUnlock()

	if !connected {
		return 0, ErrNotConnected
	}
	if !powered {
		return 0, ErrPoweredDown
	}

	sleep(m.cfg.SampleRate)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase += 0.7
	return m.rawFor(m.load, m.phase), nil
}

// rawFor converts a load to counts: offset + load*counts + noise, clamped to 24 bits.
func (m *Mock) rawFor(load float64, phase float32) int32 {
	noise := (math32.Sin(phase) + math32.Cos(phase*1.3)) * 0.5 * float32(m.cfg.Noise)
	v := m.cfg.Offset + load*m.cfg.CountsPerUnit + float64(noise)

	const maxRaw = 1<<23 - 1
	const minRaw = -(1 << 23)
	if v > maxRaw {
		v = maxRaw
	} else if v < minRaw {
		v = minRaw
	}
	return int32(v)
}

// SetLoad places a mass (in units) on the simulated platform.
func (m *Mock) SetLoad(load float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.load = load
}

// Load returns the mass on the simulated platform.
func (m *Mock) Load() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load
}

// Press holds (true) or releases (false) a simulated button.
func (m *Mock) Press(b button.Button, pressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Active low: a held button pulls the pin to ground.
	switch b {
	case button.Tare:
		m.tareLevel = !pressed
	case button.Calibrate:
		m.calibLevel = !pressed
	}
}

// TarePin returns the tare button input.
func (m *Mock) TarePin() button.Pin {
	return button.PinFunc(func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.tareLevel
	})
}

// CalibratePin returns the calibrate button input.
func (m *Mock) CalibratePin() button.Pin {
	return button.PinFunc(func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.calibLevel
	})
}
