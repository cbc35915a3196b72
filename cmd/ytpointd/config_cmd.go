// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ManuGH/ytpoint/internal/config"
)

const redacted = "***"

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "init":
		return runConfigInit(args[1:], stdout, stderr)
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  ytpointd config init [--file|-f config.yaml] [--force]")
	_, _ = fmt.Fprintln(w, "  ytpointd config validate [--file|-f config.yaml]")
	_, _ = fmt.Fprintln(w, "  ytpointd config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func fileFlag(fs *flag.FlagSet) *string {
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	return &file
}

func runConfigInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ytpointd config init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fileFlag(fs)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path := strings.TrimSpace(*file)
	if path == "" {
		path = "config.yaml"
	}

	if err := config.WriteDefault(path, *force); err != nil {
		if errors.Is(err, config.ErrExists) {
			_, _ = fmt.Fprintf(stderr, "Error: %s exists, pass --force to overwrite\n", path)
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "Failed to write %s: %v\n", path, err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "wrote default configuration to %s\n", path)
	return 0
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ytpointd config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fileFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path := strings.TrimSpace(*file)
	if path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	if _, err := config.ValidateFile(path); err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}

// runConfigDump prints the effective configuration (defaults + file + env)
// with secrets redacted.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ytpointd config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fileFlag(fs)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.NewLoader(strings.TrimSpace(*file)).Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error:\n  %v\n", err)
		return 1
	}
	redactSecrets(&cfg)

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "yaml", "yml":
		data, err := config.Marshal(cfg)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(data)
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown format: %s\n", *format)
		return 2
	}
}

func redactSecrets(cfg *config.AppConfig) {
	if cfg.Redis.Password != "" {
		cfg.Redis.Password = redacted
	}
	if cfg.Worker.Cookies != "" {
		cfg.Worker.Cookies = redacted
	}
}
