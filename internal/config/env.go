// Package config loads the lab's environment settings and course file.
package config

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// #region env
// Env is the process configuration read from the environment.
type Env struct {
	DBPath     string        `env:"CDPLAB_DB" envDefault:"cdplab.db"`
	Addr       string        `env:"CDPLAB_ADDR" envDefault:"localhost:50061"`
	Tick       time.Duration `env:"CDPLAB_TICK" envDefault:"1s"`
	Seed       int64         `env:"CDPLAB_SEED"`
	CoursePath string        `env:"CDPLAB_COURSE"`
}

// LoadEnv parses Env from the environment.
func LoadEnv() (Env, error) {
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// #endregion env

// #region seed
// ResolveSeed returns seed, or a fresh crypto-random seed when seed is zero.
func ResolveSeed(seed int64) (int64, error) {
	if seed != 0 {
		return seed, nil
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// #endregion seed
