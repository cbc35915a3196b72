// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/log"
)

// ParseString reads a string from the environment or returns defaultValue.
// The value of sensitive keys is never logged.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	if isSensitive(key) {
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	} else {
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return value
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "cookie") || strings.Contains(k, "token")
}

// ParseInt reads an integer, falling back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseNumber(key, defaultValue, strconv.Atoi)
}

// ParseInt64 reads a 64-bit integer, falling back to defaultValue on parse errors.
func ParseInt64(key string, defaultValue int64) int64 {
	return parseNumber(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// ParseFloat reads a float, falling back to defaultValue on parse errors.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseNumber(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a Go duration ("5s"), falling back to defaultValue on parse errors.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseNumber(key, defaultValue, time.ParseDuration)
}

// ParseBool reads a boolean, falling back to defaultValue on parse errors.
func ParseBool(key string, defaultValue bool) bool {
	return parseNumber(key, defaultValue, strconv.ParseBool)
}

// ParseList reads a comma-separated list. Empty items are dropped.
func ParseList(key string, defaultValue []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseNumber[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	parsed, err := parse(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}
