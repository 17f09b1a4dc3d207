// Package skills holds the skill taxonomy and the skill matcher used for
// mandatory coverage and impact relevance.
package skills

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

// Entry describes one canonical skill.
type Entry struct {
	Aliases  []string `yaml:"aliases"`
	Families []string `yaml:"families"`
}

type taxonomyFile struct {
	Skills map[string]Entry `yaml:"skills"`
}

// Taxonomy maps canonical skills to their aliases and families.
// It is immutable after construction.
type Taxonomy struct {
	skills   map[string]Entry
	aliases  map[string]string   // alias -> canonical
	families map[string][]string // family -> canonical members
	ordered  []string
}

// DefaultTaxonomy returns the built-in taxonomy.
func DefaultTaxonomy() *Taxonomy {
	t, err := ParseTaxonomy(defaultTaxonomyYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in taxonomy is invalid: %v", err))
	}
	return t
}

// LoadTaxonomy reads a taxonomy YAML file. An empty path returns the built-in taxonomy.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file %s: %w", path, err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy parses taxonomy YAML.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy YAML: %w", err)
	}
	return NewTaxonomy(file.Skills)
}

// NewTaxonomy builds a taxonomy from canonical entries. Keys and aliases are
// lowercased; an alias claimed by two skills is an error.
func NewTaxonomy(entries map[string]Entry) (*Taxonomy, error) {
	t := &Taxonomy{
		skills:   make(map[string]Entry, len(entries)),
		aliases:  make(map[string]string),
		families: make(map[string][]string),
	}
	for name, entry := range entries {
		canonical := normalizeToken(name)
		if canonical == "" {
			continue
		}
		clean := Entry{}
		for _, a := range entry.Aliases {
			if a = normalizeToken(a); a != "" && a != canonical {
				clean.Aliases = append(clean.Aliases, a)
			}
		}
		for _, f := range entry.Families {
			if f = normalizeToken(f); f != "" {
				clean.Families = append(clean.Families, f)
			}
		}
		t.skills[canonical] = clean
	}

	for canonical, entry := range t.skills {
		for _, a := range entry.Aliases {
			if _, isSkill := t.skills[a]; isSkill {
				return nil, fmt.Errorf("alias %q of %q is itself a canonical skill", a, canonical)
			}
			if other, taken := t.aliases[a]; taken && other != canonical {
				return nil, fmt.Errorf("alias %q claimed by both %q and %q", a, other, canonical)
			}
			t.aliases[a] = canonical
		}
		for _, f := range entry.Families {
			t.families[f] = append(t.families[f], canonical)
		}
		t.ordered = append(t.ordered, canonical)
	}
	sort.Strings(t.ordered)
	for f := range t.families {
		sort.Strings(t.families[f])
	}
	return t, nil
}

// Normalize maps a token to its canonical skill name. Unknown tokens are
// returned lowercased and trimmed.
func (t *Taxonomy) Normalize(token string) string {
	n := normalizeToken(token)
	if t == nil {
		return n
	}
	if canonical, ok := t.aliases[n]; ok {
		return canonical
	}
	return n
}

// Known reports whether the token is a canonical skill or an alias.
func (t *Taxonomy) Known(token string) bool {
	if t == nil {
		return false
	}
	n := normalizeToken(token)
	if _, ok := t.skills[n]; ok {
		return true
	}
	_, ok := t.aliases[n]
	return ok
}

// Aliases returns the aliases of a skill.
func (t *Taxonomy) Aliases(skill string) []string {
	if t == nil {
		return nil
	}
	return t.skills[t.Normalize(skill)].Aliases
}

// Skills returns all canonical skills in sorted order.
func (t *Taxonomy) Skills() []string {
	if t == nil {
		return nil
	}
	return t.ordered
}

// FamilyPeers returns the other canonical skills sharing a family with skill.
func (t *Taxonomy) FamilyPeers(skill string) []string {
	if t == nil {
		return nil
	}
	canonical := t.Normalize(skill)
	seen := map[string]bool{canonical: true}
	var peers []string
	for _, f := range t.skills[canonical].Families {
		for _, member := range t.families[f] {
			if !seen[member] {
				seen[member] = true
				peers = append(peers, member)
			}
		}
	}
	sort.Strings(peers)
	return peers
}

// Extract returns the canonical skills whose name or alias occurs in text,
// in sorted order.
func (t *Taxonomy) Extract(text string) []string {
	if t == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for _, skill := range t.ordered {
		if containsTerm(lower, skill) {
			found = append(found, skill)
			continue
		}
		for _, a := range t.skills[skill].Aliases {
			if containsTerm(lower, a) {
				found = append(found, skill)
				break
			}
		}
	}
	return found
}

// normalizeToken lowercases, trims and collapses inner whitespace.
func normalizeToken(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
