// Copyright 2015 ISRG.  All rights reserved
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"strings"
	"time"
)

// Config stores configuration parameters the verifier command needs. For simplicity everything is lumped into one struct and read from a
// JSON file via ReadConfigFile. Field tags use the exact option names
// spec.md §6's "Configuration (recognized options and effects)" table
// names, since Go's default JSON field matching only folds case, not
// underscores — `verify_method` does not bind to `VerifyMethod` without an
// explicit tag.
type Config struct {
	Verifier struct {
		ServiceConfig

		ListenAddress string `json:"listen_address"`

		// Audience is the exact string required in the aud claim.
		Audience string `json:"audience"`

		// VerifyMethod and VerifyPath are the HTTP method/path the request
		// binding stage compares the token's method/path claims against.
		// Left unset, cmd/verifier/main.go fills in spec.md §6's defaults
		// ("POST" / "/verify") before constructing the pipeline.
		VerifyMethod string `json:"verify_method"`
		VerifyPath   string `json:"verify_path"`

		// NonceTTLSeconds is how long a freshly issued challenge remains
		// valid. Zero means cmd/verifier/main.go applies spec.md §6's
		// default of 120.
		NonceTTLSeconds int `json:"nonce_ttl_seconds"`

		// ClockSkewSeconds is the symmetric tolerance applied to nbf/exp.
		// Zero means cmd/verifier/main.go applies spec.md §6's default of
		// 120.
		ClockSkewSeconds int `json:"clock_skew_seconds"`

		// NonceReapInterval and NonceReapGrace govern the periodic sweep
		// of expired nonce records; see nonce.MemStore.ReapLoop. Not named
		// by spec.md, so these keep the human-readable duration-string
		// shape ("30s") rather than a raw seconds count.
		NonceReapInterval ConfigDuration `json:"nonce_reap_interval"`
		NonceReapGrace    ConfigDuration `json:"nonce_reap_grace"`

		NonceStore NonceStoreConfig `json:"nonce_store"`

		ShutdownStopTimeout ConfigDuration `json:"shutdown_stop_timeout"`
	} `json:"verifier"`

	Syslog SyslogConfig `json:"syslog"`
}

// NonceStoreConfig selects and configures the nonce backend. An empty
// RedisAddress means the in-memory store is used; this is the extension
// point spec.md §4.2 calls out.
type NonceStoreConfig struct {
	RedisAddress  string       `json:"redis_address"`
	RedisPassword ConfigSecret `json:"redis_password"`
	RedisDB       int          `json:"redis_db"`
}

// ServiceConfig contains config items common to every service, to be
// embedded in other config structs.
type ServiceConfig struct {
	// DebugAddr is the address the /metrics and /healthz handlers run on.
	DebugAddr string `json:"debug_address"`
}

// SyslogConfig defines the config for logging verbosity.
type SyslogConfig struct {
	StdoutLevel *int `json:"stdout_level"`
}

// ConfigDuration is time.Duration that unmarshals from a JSON string via
// time.ParseDuration, so config files can write "120s" instead of a raw
// nanosecond count.
type ConfigDuration struct {
	time.Duration
}

// ErrDurationMustBeString is returned when a non-string value is presented
// to be deserialized as a ConfigDuration.
var ErrDurationMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigDuration")

// UnmarshalJSON parses a string into a ConfigDuration using
// time.ParseDuration.
func (d *ConfigDuration) UnmarshalJSON(b []byte) error {
	s := ""
	err := json.Unmarshal(b, &s)
	if err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return ErrDurationMustBeString
		}
		return err
	}
	dd, err := time.ParseDuration(s)
	d.Duration = dd
	return err
}

// MarshalJSON returns the string form of the duration.
func (d ConfigDuration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Duration.String() + `"`), nil
}

// A ConfigSecret represents a string-valued config field. It may be
// specified directly in the config or, if it starts with "secret:", its
// contents are read from the filename that follows, with trailing
// newlines removed.
type ConfigSecret string

var errSecretMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigSecret")

const secretPrefix = "secret:"

// UnmarshalJSON unmarshals a ConfigSecret.
func (d *ConfigSecret) UnmarshalJSON(b []byte) error {
	s := ""
	err := json.Unmarshal(b, &s)
	if err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return errSecretMustBeString
		}
		return err
	}
	if !strings.HasPrefix(s, secretPrefix) {
		*d = ConfigSecret(s)
		return nil
	}
	contents, err := ioutil.ReadFile(s[len(secretPrefix):])
	if err != nil {
		return err
	}
	*d = ConfigSecret(strings.TrimRight(string(contents), "\n"))
	return nil
}
