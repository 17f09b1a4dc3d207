package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTaxonomy(t *testing.T) *Taxonomy {
	t.Helper()
	tax, err := NewTaxonomy(map[string]Entry{
		"python":     {Aliases: []string{"py", "Python3"}, Families: []string{"lang"}},
		"go":         {Aliases: []string{"golang"}, Families: []string{"lang"}},
		"kubernetes": {Aliases: []string{"k8s"}, Families: []string{"devops"}},
		"c++":        {Aliases: []string{"cpp"}, Families: []string{"lang"}},
	})
	require.NoError(t, err)
	return tax
}

func TestDefaultTaxonomy_Loads(t *testing.T) {
	tax := DefaultTaxonomy()
	assert.NotEmpty(t, tax.Skills())
	assert.Equal(t, "kubernetes", tax.Normalize("K8s"))
	assert.Equal(t, "postgresql", tax.Normalize("postgres"))
	assert.True(t, tax.Known("golang"))
}

func TestNewTaxonomy_NormalizesKeysAndAliases(t *testing.T) {
	tax := testTaxonomy(t)
	assert.Equal(t, "python", tax.Normalize("  PYTHON3 "))
	assert.Equal(t, []string{"py", "python3"}, tax.Aliases("python"))
	assert.Equal(t, "rust", tax.Normalize("Rust"), "unknown tokens are lowercased")
	assert.False(t, tax.Known("rust"))
}

func TestNewTaxonomy_RejectsConflicts(t *testing.T) {
	_, err := NewTaxonomy(map[string]Entry{
		"python": {Aliases: []string{"py"}},
		"pypy":   {Aliases: []string{"py"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claimed by both")

	_, err = NewTaxonomy(map[string]Entry{
		"go":     {Aliases: []string{"golang"}},
		"golang": {},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is itself a canonical skill")
}

func TestTaxonomy_FamilyPeers(t *testing.T) {
	tax := testTaxonomy(t)
	assert.Equal(t, []string{"c++", "python"}, tax.FamilyPeers("golang"))
	assert.Empty(t, tax.FamilyPeers("kubernetes"))
	assert.Empty(t, tax.FamilyPeers("unknown"))
}

func TestTaxonomy_Extract(t *testing.T) {
	tax := testTaxonomy(t)
	got := tax.Extract("Shipped services in Golang and C++ on k8s; no pythonic magic.")
	assert.Equal(t, []string{"c++", "go", "kubernetes"}, got)
	assert.Nil(t, tax.Extract("   "))
}

func TestLoadTaxonomy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tax.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skills:\n  rust:\n    aliases: [rustlang]\n"), 0o644))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	assert.Equal(t, "rust", tax.Normalize("rustlang"))

	_, err = LoadTaxonomy(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	def, err := LoadTaxonomy("")
	require.NoError(t, err)
	assert.True(t, def.Known("python"))
}

func TestContainsTerm_Boundaries(t *testing.T) {
	tests := []struct {
		text string
		term string
		want bool
	}{
		{"wrote go services", "go", true},
		{"google cloud", "go", false},
		{"c++ and rust", "c++", true},
		{"ci/cd pipelines", "ci/cd", true},
		{"node.js backend", "node.js", true},
		{"", "go", false},
		{"go", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, containsTerm(tt.text, tt.term))
		})
	}
}
