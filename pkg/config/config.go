package config

import (
	"fmt"
	"os"
	"time"

	"github.com/chewxy/math32"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Scale       ScaleConfig       `yaml:"scale"`
	Startup     StartupConfig     `yaml:"startup"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Display     DisplayConfig     `yaml:"display"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration of the bridge board.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ScaleConfig contains measurement parameters.
type ScaleConfig struct {
	Units              string    `yaml:"units"`
	ReferenceMass      float32   `yaml:"reference_mass"`      // Calibration mass, in Units
	AverageSamples     int       `yaml:"average_samples"`     // Samples per steady-state reading
	CalibrationSamples int       `yaml:"calibration_samples"` // Samples per reading while calibrating
	Signature          Signature `yaml:"signature"`           // Marks a saved calibration record
	Decimals           int       `yaml:"decimals"`            // Decimal places of reported masses
}

// StartupConfig contains amplifier power-up timing.
type StartupConfig struct {
	Settle          time.Duration `yaml:"settle"`
	ReadyRetries    int           `yaml:"ready_retries"`
	ReadyRetryDelay time.Duration `yaml:"ready_retry_delay"`
}

// CalibrationConfig contains the delays around the calibration procedure.
type CalibrationConfig struct {
	GraceDelay   time.Duration `yaml:"grace_delay"`   // Before the first calibration sample
	ReleaseDelay time.Duration `yaml:"release_delay"` // After the new factor is committed
}

// StorageConfig contains non-volatile storage configuration.
type StorageConfig struct {
	Path string `yaml:"path"`
	Size int    `yaml:"size"`
}

// MetricsConfig contains the Prometheus exporter configuration.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Empty disables the exporter
}

// DisplayConfig contains front-panel application settings.
type DisplayConfig struct {
	Window  time.Duration `yaml:"window"`  // Time span of the mass trend
	Refresh time.Duration `yaml:"refresh"` // Interval between trend updates
}

// MockConfig contains simulated board configuration.
type MockConfig struct {
	Offset        float64       `yaml:"offset"`          // Raw counts with an empty platform
	CountsPerUnit float64       `yaml:"counts_per_unit"` // Raw counts per mass unit
	Load          float64       `yaml:"load"`            // Initial load on the platform (units)
	Noise         float64       `yaml:"noise"`           // Noise amplitude (raw counts)
	ReadyAfter    time.Duration `yaml:"ready_after"`     // Time from power-up until the amplifier is ready
	SampleRate    time.Duration `yaml:"sample_rate"`     // Time per amplifier conversion
}

// Signature is the sentinel byte of a saved calibration record.
// In YAML it is written as a one-character string, or as an integer when the
// byte is not a printable character.
type Signature byte

// erasedByte is what never-written storage cells read as.
const erasedByte Signature = 0xFF

// UnmarshalYAML accepts an integer 0-255 or a single character.
// A plain scalar that resolves to an integer is always taken as the number, so
// `signature: 7` is byte 7. Quote it to get the character '7'.
func (s *Signature) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.ShortTag() == "!!int" {
		var n int
		if err := value.Decode(&n); err != nil || n < 0 || n > 255 {
			return fmt.Errorf("invalid signature %q: expected a single character or 0-255", value.Value)
		}
		*s = Signature(n)
		return nil
	}

	var str string
	if err := value.Decode(&str); err != nil || len(str) != 1 {
		return fmt.Errorf("invalid signature %q: expected a single character or 0-255", value.Value)
	}
	*s = Signature(str[0])
	return nil
}

// MarshalYAML writes the signature so that UnmarshalYAML reads back the same byte.
func (s Signature) MarshalYAML() (interface{}, error) {
	if s > ' ' && s < 0x7f {
		return string([]byte{byte(s)}), nil
	}
	return int(s), nil
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Scale: ScaleConfig{
			Units:              "kg",
			ReferenceMass:      0.2359,
			AverageSamples:     1, // Keeps the loop responsive to button presses
			CalibrationSamples: 10,
			Signature:          'C',
			Decimals:           3,
		},
		Startup: StartupConfig{
			Settle:          500 * time.Millisecond,
			ReadyRetries:    10,
			ReadyRetryDelay: 100 * time.Millisecond,
		},
		Calibration: CalibrationConfig{
			GraceDelay:   time.Second,
			ReleaseDelay: time.Second,
		},
		Storage: StorageConfig{
			Path: "scale.eeprom",
			Size: 1024,
		},
		Display: DisplayConfig{
			Window:  30 * time.Second,
			Refresh: 100 * time.Millisecond,
		},
		Mock: MockConfig{
			Offset:        8400,
			CountsPerUnit: 100000,
			Load:          0,
			Noise:         20,
			ReadyAfter:    200 * time.Millisecond,
			SampleRate:    12500 * time.Microsecond, // 80 SPS
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, pkgerrors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to parse config file")
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return pkgerrors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Validate rejects configurations the scale cannot run with.
// A zero or non-finite reference mass is caught here so that calibration
// never divides by it.
func (c *Config) Validate() error {
	if m := c.Scale.ReferenceMass; m == 0 || math32.IsNaN(m) || math32.IsInf(m, 0) {
		return fmt.Errorf("scale.reference_mass must be finite and non-zero, got %v", m)
	}
	if c.Scale.Signature == erasedByte {
		return fmt.Errorf("scale.signature must not be 0xFF, erased storage reads as that byte")
	}
	if c.Scale.AverageSamples < 1 {
		return fmt.Errorf("scale.average_samples must be at least 1, got %d", c.Scale.AverageSamples)
	}
	if c.Scale.CalibrationSamples < 1 {
		return fmt.Errorf("scale.calibration_samples must be at least 1, got %d", c.Scale.CalibrationSamples)
	}
	if c.Scale.Units == "" {
		return fmt.Errorf("scale.units must not be empty")
	}
	if c.Startup.ReadyRetries < 1 {
		return fmt.Errorf("startup.ready_retries must be at least 1, got %d", c.Startup.ReadyRetries)
	}
	if c.Storage.Size < 5 {
		return fmt.Errorf("storage.size must hold at least 5 bytes, got %d", c.Storage.Size)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
// Counts are left alone when set so that Validate can reject bad values. The
// signature is left alone too: Load starts from Default, so a zero signature
// was written on purpose.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Scale.Units == "" {
		c.Scale.Units = def.Scale.Units
	}

	if c.Startup.ReadyRetryDelay == 0 {
		c.Startup.ReadyRetryDelay = def.Startup.ReadyRetryDelay
	}

	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.Size == 0 {
		c.Storage.Size = def.Storage.Size
	}

	if c.Display.Window == 0 {
		c.Display.Window = def.Display.Window
	}
	if c.Display.Refresh == 0 {
		c.Display.Refresh = def.Display.Refresh
	}

	if c.Mock.CountsPerUnit == 0 {
		c.Mock.CountsPerUnit = def.Mock.CountsPerUnit
	}
	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
}
