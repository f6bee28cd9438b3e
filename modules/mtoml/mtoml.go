// Package mtoml parses TOML configuration.
package mtoml

import (
	"bytes"
	"os"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/xerrors"
)

// ParseFile is a shortcut from parsing a source file as TOML.
func ParseFile(source string, v interface{}) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return xerrors.Errorf("error reading file: %w", err)
	}

	err = toml.Unmarshal(data, v)
	if err != nil {
		return xerrors.Errorf("error unmarshaling TOML: %w", err)
	}

	return nil
}

// ParseFileStrict is like ParseFile, but keys that don't map to a field of v
// are an error.
func ParseFileStrict(source string, v interface{}) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return xerrors.Errorf("error reading file: %w", err)
	}

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	err = decoder.Decode(v)
	if err != nil {
		return xerrors.Errorf("error unmarshaling TOML: %w", err)
	}

	return nil
}
