package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// fusevault-teed config.toml key mapping.
type fileConfig struct {
	Listen   string        `toml:"listen"`
	LogLevel string        `toml:"log_level"`
	Fields   []fieldConfig `toml:"field"`
}

// fieldConfig pre-provisions one field at startup. Exactly one of hex or
// data must be set.
type fieldConfig struct {
	ID   uint32 `toml:"id"`
	Hex  string `toml:"hex"`
	Data string `toml:"data"`
}

func (f fieldConfig) payload() ([]byte, error) {
	switch {
	case f.Hex != "" && f.Data != "":
		return nil, fmt.Errorf("field %d: hex and data are mutually exclusive", f.ID)
	case f.Hex != "":
		b, err := hex.DecodeString(strings.TrimSpace(f.Hex))
		if err != nil {
			return nil, fmt.Errorf("field %d: invalid hex: %w", f.ID, err)
		}
		return b, nil
	case f.Data != "":
		return []byte(f.Data), nil
	default:
		return nil, fmt.Errorf("field %d: missing hex or data", f.ID)
	}
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	for _, f := range cfg.Fields {
		if _, err := f.payload(); err != nil {
			return fileConfig{}, fmt.Errorf("load config: %w", err)
		}
	}
	return cfg, nil
}
