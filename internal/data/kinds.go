package data

import (
	"fmt"
	"os"

	"github.com/fishworks/ecs/internal/core/ecs"
	"gopkg.in/yaml.v3"
)

// KindEntry declares one component kind in the manifest.
type KindEntry struct {
	Kind ecs.Kind `yaml:"kind"`
	Note string   `yaml:"note"`
}

// KindManifest lists every component kind a host uses, in the order they
// should receive bits.
type KindManifest struct {
	entries []KindEntry
	byKind  map[ecs.Kind]*KindEntry
}

// LoadKindManifest loads kinds.yaml. Empty and duplicate kinds are rejected.
func LoadKindManifest(path string) (*KindManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kind manifest: %w", err)
	}
	var entries []KindEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse kind manifest: %w", err)
	}
	m := &KindManifest{
		entries: entries,
		byKind:  make(map[ecs.Kind]*KindEntry, len(entries)),
	}
	for i := range m.entries {
		e := &m.entries[i]
		if e.Kind == "" {
			return nil, fmt.Errorf("kind manifest entry %d: empty kind", i)
		}
		if _, dup := m.byKind[e.Kind]; dup {
			return nil, fmt.Errorf("kind manifest entry %d: duplicate kind %q", i, e.Kind)
		}
		m.byKind[e.Kind] = e
	}
	return m, nil
}

// Kinds returns the declared kinds in file order.
func (m *KindManifest) Kinds() []ecs.Kind {
	out := make([]ecs.Kind, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Kind
	}
	return out
}

// Get returns the entry for kind, or nil if the manifest does not list it.
func (m *KindManifest) Get(kind ecs.Kind) *KindEntry {
	return m.byKind[kind]
}

func (m *KindManifest) Count() int {
	return len(m.entries)
}

// Register assigns bits to every declared kind, in file order.
func (m *KindManifest) Register(reg *ecs.Registry) error {
	if err := reg.Register(m.Kinds()...); err != nil {
		return fmt.Errorf("register manifest kinds: %w", err)
	}
	return nil
}
