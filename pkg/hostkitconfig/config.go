// Optional per-user defaults for hostkit commands
package hostkitconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/jsonfile"
)

const (
	configFilename = "hostkit-config.json"
)

type Config struct {
	ProviderService    string `json:"provider_service,omitempty"` // default "VSS"
	SettleDelayMs      *int   `json:"settle_delay_ms,omitempty"`  // default 2000
	DefaultVolume      string `json:"default_volume,omitempty"`   // default "C:"
	DefaultDestination string `json:"default_destination,omitempty"`
	MetricsTextfile    string `json:"metrics_textfile,omitempty"`
}

func Defaults() Config {
	settleDelayMs := 2000

	return Config{
		ProviderService: "VSS",
		SettleDelayMs:   &settleDelayMs,
		DefaultVolume:   "C:",
	}
}

func (c Config) SettleDelay() time.Duration {
	if c.SettleDelayMs == nil {
		return 2 * time.Second
	}

	return time.Duration(*c.SettleDelayMs) * time.Millisecond
}

// values set in "override" win
func (c Config) merge(override Config) Config {
	if override.ProviderService != "" {
		c.ProviderService = override.ProviderService
	}
	if override.SettleDelayMs != nil {
		c.SettleDelayMs = override.SettleDelayMs
	}
	if override.DefaultVolume != "" {
		c.DefaultVolume = override.DefaultVolume
	}
	if override.DefaultDestination != "" {
		c.DefaultDestination = override.DefaultDestination
	}
	if override.MetricsTextfile != "" {
		c.MetricsTextfile = override.MetricsTextfile
	}

	return c
}

func (c Config) validate() error {
	if c.SettleDelayMs != nil && *c.SettleDelayMs < 0 {
		return fmt.Errorf("settle_delay_ms must not be negative; got %d", *c.SettleDelayMs)
	}

	return nil
}

// missing config file is not an error: you'll get Defaults()
func Read() (Config, error) {
	confPath, err := FilePath()
	if err != nil {
		return Config{}, fmt.Errorf("hostkit config: %w", err)
	}

	return ReadFrom(confPath)
}

func ReadFrom(confPath string) (Config, error) {
	exists, err := fileexists.Exists(confPath)
	if err != nil {
		return Config{}, fmt.Errorf("hostkit config: %w", err)
	}

	if !exists {
		return Defaults(), nil
	}

	fromFile := Config{}
	if err := jsonfile.Read(confPath, &fromFile, true); err != nil {
		return Config{}, fmt.Errorf("hostkit config: %w", err)
	}

	if err := fromFile.validate(); err != nil {
		return Config{}, fmt.Errorf("hostkit config: %w", err)
	}

	return Defaults().merge(fromFile), nil
}

func Write(conf Config) error {
	confPath, err := FilePath()
	if err != nil {
		return err
	}

	return WriteTo(conf, confPath)
}

func WriteTo(conf Config, confPath string) error {
	if err := conf.validate(); err != nil {
		return err
	}

	return jsonfile.Write(confPath, conf)
}

func FilePath() (string, error) {
	usersHomeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(usersHomeDirectory, configFilename), nil
}
