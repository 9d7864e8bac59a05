// Package stats is an explicitly constructed metrics client built on the
// OpenTelemetry metric SDK. Callers declare measures and views, register the
// views, start the client and then record observations against it. Export is
// driven from outside through Flush, so the caller owns the schedule.
package stats

import (
	"fmt"
	"slices"
)

// Unit is the unit of a measure, in UCUM notation.
type Unit string

const (
	UnitDimensionless Unit = "1"
	UnitMilliseconds  Unit = "ms"
)

// Measure is a named int64 quantity that is observed repeatedly.
// It is immutable once created.
type Measure struct {
	name        string
	description string
	unit        Unit
}

// Int64 declares an int64 measure.
func Int64(name, description string, unit Unit) *Measure {
	return &Measure{name: name, description: description, unit: unit}
}

func (m *Measure) Name() string        { return m.name }
func (m *Measure) Description() string { return m.description }
func (m *Measure) Unit() Unit          { return m.unit }

const maxTagKeyLength = 100

// TagKey names a dimension that partitions observations into timeseries.
type TagKey struct {
	name string
}

// NewTagKey validates name and returns a key for it
func NewTagKey(name string) (TagKey, error) {
	if name == "" {
		return TagKey{}, fmt.Errorf("tag key cannot be empty")
	}
	if len(name) > maxTagKeyLength {
		return TagKey{}, fmt.Errorf("tag key %q is too long (max %d characters)", name, maxTagKeyLength)
	}
	for _, r := range name {
		if r < 0x20 || r > 0x7e {
			return TagKey{}, fmt.Errorf("tag key %q must be printable ASCII", name)
		}
	}
	return TagKey{name: name}, nil
}

// MustNewTagKey is like NewTagKey but panics on an invalid name.
// Intended for package-level declarations.
func MustNewTagKey(name string) TagKey {
	k, err := NewTagKey(name)
	if err != nil {
		panic(err)
	}
	return k
}

func (k TagKey) Name() string { return k.name }

// Tags is the label set attached to a single observation.
type Tags map[TagKey]string

// keys returns the tag key names in sorted order
func (t Tags) keys() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k.name)
	}
	slices.Sort(names)
	return names
}
