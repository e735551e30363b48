package medkg

import "github.com/ZanzyTHEbar/medkg-libsql-go/internal/config"

// Config is the process configuration used in package mode.
type Config = config.Config

// LoadConfig reads optional .env files and the environment, then validates.
func LoadConfig(files ...string) (*Config, error) {
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
