// Package config loads the signing defaults from a TOML file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(false)
}

// DefaultLocation is where the config file is looked up when no path
// is given on the command line.
var DefaultLocation = "./pdfseal.conf"

// Config is the root of the config file.
type Config struct {
	// Signature appearance defaults, used when the corresponding
	// command line flags are absent.
	Name        string `toml:"name"`
	Location    string `toml:"location"`
	Reason      string `toml:"reason"`
	ContactInfo string `toml:"contact_info"`

	// Capacity overrides the reserved signature slot size in bytes.
	// Zero keeps the estimate derived from the credential.
	Capacity uint32 `toml:"capacity"`

	TSA  TSA  `toml:"tsa"`
	OCSP OCSP `toml:"ocsp"`
}

// TSA configures the timestamping authority endpoints.
type TSA struct {
	URL            string `toml:"url" valid:"url,optional"`
	FallbackURL    string `toml:"fallback_url" valid:"url,optional"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OCSP configures the revocation checks done for LTV embedding.
type OCSP struct {
	Disabled       bool `toml:"disabled"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		TSA:  TSA{TimeoutSeconds: 15},
		OCSP: OCSP{TimeoutSeconds: 10},
	}
}

// ValidateFields validates all the fields of the config.
func (c Config) ValidateFields() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return err
	}
	if c.TSA.FallbackURL != "" && c.TSA.URL == "" {
		return fmt.Errorf("config: tsa fallback_url requires url")
	}
	return nil
}

// Read loads and validates the config file at the given path. Missing
// keys keep their defaults.
func Read(path string) (Config, error) {
	c := Default()

	if _, err := os.Stat(path); err != nil {
		return c, fmt.Errorf("config: file is missing: %s", path)
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if err := c.ValidateFields(); err != nil {
		return c, err
	}
	return c, nil
}
