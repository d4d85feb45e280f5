// Package coding derives hierarchical part codes from labels.
//
// A code has the form "<categoryId>.<typeOrdinal>.<sequence>". The type ordinal
// of a (category, type) pair is fixed the first time the pair is seen and the
// sequence grows by one for every further row in the same bucket, so codes
// depend only on the label sequence and its order.
package coding

import (
	"fmt"

	"shipclass/internal/models"
)

const (
	DefaultTypeOrdinalBase = 100
	DefaultSequenceBase    = 100
)

// Config holds the base offsets of the generated codes.
type Config struct {
	TypeOrdinalBase int `mapstructure:"type_ordinal_base"`
	SequenceBase    int `mapstructure:"sequence_base"`
}

// DefaultConfig returns the 100/100 bases.
func DefaultConfig() Config {
	return Config{TypeOrdinalBase: DefaultTypeOrdinalBase, SequenceBase: DefaultSequenceBase}
}

type bucket struct {
	category string
	typ      string
}

// Assigner holds the counters of one sequential coding pass.
// It is not safe for concurrent use.
type Assigner struct {
	cfg      Config
	ordinals map[string]map[string]int
	sequence map[bucket]int
}

// NewAssigner returns an Assigner with empty counters.
func NewAssigner(cfg Config) *Assigner {
	a := &Assigner{cfg: cfg}
	a.Reset()
	return a
}

// Reset clears all counters.
func (a *Assigner) Reset() {
	a.ordinals = make(map[string]map[string]int)
	a.sequence = make(map[bucket]int)
}

// Assign returns the next code for label. Unknown categories get id 0; unknown
// types simply open a new ordinal.
func (a *Assigner) Assign(label models.Label) string {
	catID := models.CategoryID(label.Category)

	types, ok := a.ordinals[label.Category]
	if !ok {
		types = make(map[string]int)
		a.ordinals[label.Category] = types
	}
	ordinal, ok := types[label.Type]
	if !ok {
		ordinal = len(types) + a.cfg.TypeOrdinalBase
		types[label.Type] = ordinal
	}

	key := bucket{category: label.Category, typ: label.Type}
	seq, ok := a.sequence[key]
	if !ok {
		seq = a.cfg.SequenceBase
	} else {
		seq++
	}
	a.sequence[key] = seq

	return fmt.Sprintf("%d.%d.%d", catID, ordinal, seq)
}

// AssignAll codes labels in order.
func (a *Assigner) AssignAll(labels []models.Label) []string {
	codes := make([]string, len(labels))
	for i, l := range labels {
		codes[i] = a.Assign(l)
	}
	return codes
}

// Codes is a convenience wrapper running a fresh Assigner over labels.
func Codes(cfg Config, labels []models.Label) []string {
	return NewAssigner(cfg).AssignAll(labels)
}
