// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// ErrExists is returned by Write when the target exists and overwrite is off.
var ErrExists = errors.New("config file already exists")

// Marshal renders cfg as YAML.
func Marshal(cfg AppConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores cfg at path atomically: readers never see a partial file.
func Write(path string, cfg AppConfig, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config: %w", err)
	}
	return nil
}

// WriteDefault writes Default() to path.
func WriteDefault(path string, overwrite bool) error {
	return Write(path, Default(), overwrite)
}

// ValidateFile loads path with the environment applied and validates it.
func ValidateFile(path string) (AppConfig, error) {
	return NewLoader(path).Load()
}
