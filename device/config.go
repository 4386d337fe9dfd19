package device

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Alia5/usbd/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// Config carries the identity fields Init writes into the device and
// configuration descriptors. Pointer fields distinguish "keep the builtin
// default" (nil) from an explicit zero value.
type Config struct {
	Manufacturer  string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty" toml:"manufacturer,omitempty"`
	Product       string `json:"product,omitempty" yaml:"product,omitempty" toml:"product,omitempty"`
	Serial        string `json:"serial,omitempty" yaml:"serial,omitempty" toml:"serial,omitempty"`
	Configuration string `json:"configuration,omitempty" yaml:"configuration,omitempty" toml:"configuration,omitempty"`

	VendorID  *uint16 `json:"idVendor,omitempty" yaml:"idVendor,omitempty" toml:"idVendor,omitempty"`
	ProductID *uint16 `json:"idProduct,omitempty" yaml:"idProduct,omitempty" toml:"idProduct,omitempty"`
	BCDDevice *uint16 `json:"bcdDevice,omitempty" yaml:"bcdDevice,omitempty" toml:"bcdDevice,omitempty"`

	DeviceClass    *uint8 `json:"deviceClass,omitempty" yaml:"deviceClass,omitempty" toml:"deviceClass,omitempty"`
	DeviceSubClass *uint8 `json:"deviceSubClass,omitempty" yaml:"deviceSubClass,omitempty" toml:"deviceSubClass,omitempty"`
	DeviceProtocol *uint8 `json:"deviceProtocol,omitempty" yaml:"deviceProtocol,omitempty" toml:"deviceProtocol,omitempty"`

	// MaxPower is the bus power draw in mA written to bMaxPower. nil means
	// the default of 50; an explicit zero marks the device self-powered.
	MaxPower *uint16 `json:"maxPowerMa,omitempty" yaml:"maxPowerMa,omitempty" toml:"maxPowerMa,omitempty"`

	// BuiltinDrivers keeps the port's built-in class drivers active
	// alongside the registered interfaces.
	BuiltinDrivers bool `json:"builtinDrivers,omitempty" yaml:"builtinDrivers,omitempty" toml:"builtinDrivers,omitempty"`

	// Inactive leaves the device disconnected from the bus after Init.
	Inactive bool `json:"inactive,omitempty" yaml:"inactive,omitempty" toml:"inactive,omitempty"`

	// LogLevel configures the Device's logger when no explicit logger is
	// given: trace, debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" toml:"logLevel,omitempty"`
}

// LoadConfig reads a config file, picking the decoder by extension: .json,
// .yaml/.yml or .toml.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	case ".toml":
		err = toml.Unmarshal(data, &c)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// FindConfig returns the first existing config file among the candidate
// locations. A userPath is checked first and must exist when given.
func FindConfig(userPath string) (string, error) {
	jsonPaths, yamlPaths, tomlPaths := configpaths.Candidates(userPath)
	if userPath != "" {
		if _, err := os.Stat(userPath); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return userPath, nil
	}
	for _, paths := range [][]string{jsonPaths, yamlPaths, tomlPaths} {
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", os.ErrNotExist
}

// DefaultConfigPath returns the platform default location for a config file
// in the given format.
func DefaultConfigPath(format string) (string, error) {
	return configpaths.DefaultConfigPath(format)
}

// WriteTemplate marshals the config in the given format, for scaffolding a
// config file from current values.
func (c Config) WriteTemplate(w io.Writer, format string) error {
	var data []byte
	var err error
	switch strings.ToLower(format) {
	case "json":
		data, err = json.MarshalIndent(c, "", "  ")
	case "yaml", "yml":
		data, err = yaml.Marshal(c)
	case "toml":
		data, err = toml.Marshal(c)
	default:
		return fmt.Errorf("unsupported config format: %s", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
