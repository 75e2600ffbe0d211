package achievements

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Catalog is the immutable set of achievement definitions, loaded once
// at startup.
type Catalog struct {
	defs  []Definition
	byKey map[string]Definition
}

type catalogFile struct {
	Achievement []struct {
		Key      string             `toml:"key"`
		Name     string             `toml:"name"`
		Category string             `toml:"category"`
		Icon     string             `toml:"icon"`
		Criteria map[string]float64 `toml:"criteria"`
	} `toml:"achievement"`
}

// LoadCatalog reads achievement definitions from a TOML file. Every entry
// must have a unique key and exactly one criterion of a known kind with a
// positive threshold.
func LoadCatalog(path string) (*Catalog, error) {
	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	if len(file.Achievement) == 0 {
		return nil, errors.New("catalog is empty")
	}

	defs := make([]Definition, 0, len(file.Achievement))
	for _, a := range file.Achievement {
		if a.Key == "" {
			return nil, errors.New("achievement without a key")
		}
		if a.Name == "" {
			return nil, fmt.Errorf("achievement %q has no name", a.Key)
		}
		if len(a.Criteria) != 1 {
			return nil, fmt.Errorf("achievement %q must have exactly one criterion, has %d", a.Key, len(a.Criteria))
		}

		def := Definition{
			Key:      a.Key,
			Name:     a.Name,
			Category: a.Category,
			Icon:     a.Icon,
		}
		for kind, threshold := range a.Criteria {
			def.Criteria = Criteria{Kind: CriteriaKind(kind), Threshold: threshold}
		}
		if _, err := def.Criteria.SatisfiedBy(Snapshot{}); err != nil {
			return nil, fmt.Errorf("achievement %q: %w", a.Key, err)
		}
		if def.Criteria.Threshold <= 0 {
			return nil, fmt.Errorf("achievement %q has non-positive threshold %v", a.Key, def.Criteria.Threshold)
		}

		defs = append(defs, def)
	}

	return NewCatalog(defs)
}

func NewCatalog(defs []Definition) (*Catalog, error) {
	byKey := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if _, ok := byKey[def.Key]; ok {
			return nil, fmt.Errorf("duplicate achievement key %q", def.Key)
		}
		byKey[def.Key] = def
	}

	return &Catalog{
		defs:  append([]Definition(nil), defs...),
		byKey: byKey,
	}, nil
}

func (c *Catalog) All() []Definition {
	return append([]Definition(nil), c.defs...)
}

func (c *Catalog) Get(key string) (Definition, bool) {
	def, ok := c.byKey[key]
	return def, ok
}

func (c *Catalog) Len() int {
	return len(c.defs)
}
