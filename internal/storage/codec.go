package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/modsettings/internal/settings"
)

// Codec converts settings fields to and from a file format.
type Codec interface {
	// Name returns the format name ("json", "toml", "yaml").
	Name() string

	// Extension returns the file extension including the dot.
	Extension() string

	// Encode writes the version key followed by fields, in order.
	Encode(fields []settings.Field, version int) ([]byte, error)

	// Decode parses a file into a flat map of field names to raw values.
	Decode(data []byte) (map[string]any, error)
}

// CodecByName returns the codec for a format name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "toml":
		return TOMLCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// JSONCodec stores settings as indented JSON. Comments in hand-edited files
// are accepted on read.
type JSONCodec struct{}

// Name returns "json".
func (JSONCodec) Name() string { return "json" }

// Extension returns ".json".
func (JSONCodec) Extension() string { return ".json" }

// Encode writes a JSON object with two-space indentation.
func (JSONCodec) Encode(fields []settings.Field, version int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")

	write := func(name string, value any, last bool) error {
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		val, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if !last {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		return nil
	}

	if err := write(settings.VersionKey, version, len(fields) == 0); err != nil {
		return nil, err
	}
	for i, f := range fields {
		if err := write(f.Name, f.Value.Interface(), i == len(fields)-1); err != nil {
			return nil, err
		}
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Decode parses JSON with comments into a map. Numbers are kept as
// json.Number so integers round-trip exactly.
func (JSONCodec) Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()

	var result map[string]any
	if err := dec.Decode(&result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("settings file does not contain an object")
	}
	return result, nil
}

// TOMLCodec stores settings as a flat TOML document.
type TOMLCodec struct{}

// Name returns "toml".
func (TOMLCodec) Name() string { return "toml" }

// Extension returns ".toml".
func (TOMLCodec) Extension() string { return ".toml" }

// Encode writes one key per line in field order.
func (TOMLCodec) Encode(fields []settings.Field, version int) ([]byte, error) {
	var buf bytes.Buffer

	line, err := toml.Marshal(map[string]any{settings.VersionKey: version})
	if err != nil {
		return nil, err
	}
	buf.Write(line)

	for _, f := range fields {
		line, err := toml.Marshal(map[string]any{f.Name: f.Value.Interface()})
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", f.Name, err)
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

// Decode parses a TOML document into a map.
func (TOMLCodec) Decode(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]any)
	}
	return result, nil
}

// YAMLCodec stores settings as a YAML mapping.
type YAMLCodec struct{}

// Name returns "yaml".
func (YAMLCodec) Name() string { return "yaml" }

// Extension returns ".yaml".
func (YAMLCodec) Extension() string { return ".yaml" }

// Encode writes a mapping node so keys keep field order.
func (YAMLCodec) Encode(fields []settings.Field, version int) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	add := func(name string, value any) error {
		val := &yaml.Node{}
		if err := val.Encode(value); err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			val,
		)
		return nil
	}

	if err := add(settings.VersionKey, version); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if err := add(f.Name, f.Value.Interface()); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a YAML mapping into a map.
func (YAMLCodec) Decode(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]any)
	}
	return result, nil
}

// decodeLine extracts a line number from codec errors that carry one.
func decodeLine(err error) int {
	var tomlErr *toml.DecodeError
	if errors.As(err, &tomlErr) {
		row, _ := tomlErr.Position()
		return row
	}
	return 0
}
