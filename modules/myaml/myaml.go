// Package myaml parses YAML configuration. Being a superset of JSON, YAML
// also covers JSON configuration files.
package myaml

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// ParseFile is a shortcut from parsing a source file as YAML.
func ParseFile(source string, v interface{}) error {
	return parseFile(source, v, yaml.Unmarshal)
}

// ParseFileStrict is like ParseFile, but unknown keys or duplicate keys are an
// error.
func ParseFileStrict(source string, v interface{}) error {
	return parseFile(source, v, yaml.UnmarshalStrict)
}

//
// Private
//

func parseFile(source string, v interface{}, unmarshal func([]byte, interface{}) error) error {
	raw, err := os.ReadFile(source)
	if err != nil {
		return xerrors.Errorf("error reading file: %w", err)
	}

	err = unmarshal(raw, v)
	if err != nil {
		return xerrors.Errorf("error unmarshaling YAML: %w", err)
	}

	return nil
}
