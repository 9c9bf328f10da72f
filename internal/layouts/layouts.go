// Package layouts loads and validates keyboard layout definition
// files. Layouts are JSON documents shipped with the engine or
// dropped into the user's layout directory; every file is checked
// against an embedded schema before anything trusts its contents,
// and fingerprinted so a layout can be identified across renames.
package layouts

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/crypto/blake2b"
)

// schemaURL names the embedded schema resource.
const schemaURL = "kolom://layout.schema.json"

const layoutSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "display_name", "version", "language", "patterns"],
  "properties": {
    "name": {
      "type": "string",
      "pattern": "^[a-z0-9][a-z0-9_-]*$"
    },
    "display_name": {
      "type": "string",
      "minLength": 1
    },
    "version": {
      "type": "integer",
      "minimum": 1
    },
    "language": {
      "type": "string",
      "minLength": 2,
      "maxLength": 8
    },
    "patterns": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["find", "replace"],
        "properties": {
          "find": {"type": "string", "minLength": 1},
          "replace": {"type": "string"},
          "rules": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["when", "replace"],
              "properties": {
                "when": {"type": "string", "enum": ["prefix", "suffix", "punctuation", "vowel", "consonant"]},
                "replace": {"type": "string"}
              },
              "additionalProperties": false
            }
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// Pattern is one transliteration mapping.
type Pattern struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule refines a pattern by context.
type Rule struct {
	When    string `json:"when"`
	Replace string `json:"replace"`
}

// Layout is one parsed layout definition.
type Layout struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Version     int       `json:"version"`
	Language    string    `json:"language"`
	Patterns    []Pattern `json:"patterns"`

	// Fingerprint is the hex BLAKE2b-256 of the file contents, not
	// part of the JSON document.
	Fingerprint string `json:"-"`
}

var compiled = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(layoutSchema)); err != nil {
		panic(fmt.Sprintf("layouts: add schema resource: %v", err))
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("layouts: compile schema: %v", err))
	}
	return s
}

// Validate checks data against the layout schema.
func Validate(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse layout json: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("validate layout: %w", err)
	}
	return nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse validates and decodes one layout document.
func Parse(data []byte) (*Layout, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var l Layout
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}

	l.Fingerprint = Fingerprint(data)
	return &l, nil
}

// LoadFile reads, validates and decodes the layout at path.
func LoadFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}

	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// LoadDir loads every *.json layout under dir, sorted by name. Files
// that fail validation are reported together rather than aborting on
// the first.
func LoadDir(dir string) ([]*Layout, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read layout directory: %w", err)
	}

	var layouts []*Layout
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		l, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		layouts = append(layouts, l)
	}

	sort.Slice(layouts, func(i, j int) bool { return layouts[i].Name < layouts[j].Name })

	if len(errs) > 0 {
		return layouts, fmt.Errorf("%d invalid layout file(s): %w", len(errs), joinErrors(errs))
	}
	return layouts, nil
}

// Find loads the layout named name from dir.
func Find(dir, name string) (*Layout, error) {
	layouts, err := LoadDir(dir)
	if err != nil && layouts == nil {
		return nil, err
	}
	for _, l := range layouts {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("layout %q not found in %s", name, dir)
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
