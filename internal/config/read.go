// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/sitekit/internal/log"
)

// Origin records where a value came from.
type Origin string

const (
	OriginEnvironment Origin = "environment"
	OriginDefault     Origin = "default"
)

// Person is a name and address pair from ADMINS or MANAGERS.
type Person struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Value is a decoded variable.
type Value struct {
	Key    string
	Kind   Kind
	Raw    string
	Origin Origin
	v      any
}

func (v Value) String() string {
	s, _ := v.v.(string)
	return s
}

func (v Value) Bool() bool {
	b, _ := v.v.(bool)
	return b
}

func (v Value) Int() int {
	i, _ := v.v.(int)
	return i
}

func (v Value) Float() float64 {
	f, _ := v.v.(float64)
	return f
}

func (v Value) Duration() time.Duration {
	d, _ := v.v.(time.Duration)
	return d
}

// Strings returns a copy of a decoded list.
func (v Value) Strings() []string {
	l, _ := v.v.([]string)
	return append([]string(nil), l...)
}

// People returns a copy of decoded pairs.
func (v Value) People() []Person {
	p, _ := v.v.([]Person)
	return append([]Person(nil), p...)
}

// ReadVariable reads one variable from src and decodes it per the binding.
// An absent variable without a default is ErrMissingVariable; a value that
// does not decode is ErrInvalidLiteral.
func ReadVariable(src Source, b Binding) (Value, error) {
	return readVariable(log.WithComponent("config"), src, b)
}

func readVariable(logger zerolog.Logger, src Source, b Binding) (Value, error) {
	raw, ok := src(b.Key)
	origin := OriginEnvironment
	if !ok {
		if !b.HasDefault() {
			return Value{}, missing(b.Key)
		}
		raw = *b.Default
		origin = OriginDefault
	}

	decoded, err := decode(b.Kind, raw)
	if err != nil {
		return Value{}, invalid(b.Key, err)
	}

	ev := logger.Debug().Str("key", b.Key).Str("source", string(origin))
	if b.Sensitive {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", raw)
	}
	ev.Msg("resolved variable")

	return Value{Key: b.Key, Kind: b.Kind, Raw: raw, Origin: origin, v: decoded}, nil
}

func decode(kind Kind, raw string) (any, error) {
	switch kind {
	case KindString:
		return raw, nil
	case KindBool:
		return parseBool(raw)
	case KindInt:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", raw)
		}
		return i, nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", raw)
		}
		return f, nil
	case KindDuration:
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindList:
		return parseList(raw)
	case KindPeople:
		return parsePeople(raw)
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}

// parseBool accepts true/false, 1/0, yes/no and on/off in any case.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}

var errNotSequence = errors.New("expected a flow sequence such as [\"a\", \"b\"]")

func parseList(raw string) ([]string, error) {
	node, err := flowSequence(raw)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := node.Decode(&out); err != nil {
		return nil, fmt.Errorf("expected a sequence of strings: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func parsePeople(raw string) ([]Person, error) {
	node, err := flowSequence(raw)
	if err != nil {
		return nil, err
	}
	var pairs [][]string
	if err := node.Decode(&pairs); err != nil {
		return nil, fmt.Errorf("expected a sequence of [name, email] pairs: %w", err)
	}
	out := make([]Person, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("entry %d: expected [name, email], got %d items", i, len(p))
		}
		out = append(out, Person{Name: p[0], Email: p[1]})
	}
	return out, nil
}

// flowSequence parses raw as a YAML document and requires a sequence at
// the top level, so a bare scalar like "example.com" is rejected.
func flowSequence(raw string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.SequenceNode {
		return nil, errNotSequence
	}
	return doc.Content[0], nil
}
