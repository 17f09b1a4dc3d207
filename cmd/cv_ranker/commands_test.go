package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/cv-ranker/internal/pipeline"
	"github.com/jonathan/cv-ranker/internal/retrieval"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_RequiredFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		errorString string
	}{
		{name: "search without job", args: []string{"search", "--company", "acme"}, errorString: `"job"`},
		{name: "embed without company", args: []string{"embed", "--job", "backend"}, errorString: `"company"`},
		{name: "rank without cvs", args: []string{"rank", "--jd", "jd.json"}, errorString: `"cvs"`},
		{name: "impact without cv", args: []string{"impact"}, errorString: `"cv"`},
		{name: "match without skill", args: []string{"match", "--text", "go"}, errorString: `"skill"`},
		{name: "status without job", args: []string{"status", "--company", "acme"}, errorString: `"job"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "required flag")
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestRankCommand_JSON(t *testing.T) {
	offlineEnv(t)
	jd, cvs := writeFixtures(t, map[string]string{"ada.json": testStrongCV, "bob.json": testWeakCV})

	out, err := execute(t, "rank", "--jd", jd, "--cvs", cvs, "--embedder", "hash", "--details", "--json")
	require.NoError(t, err)

	var resp types.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, localCompany, resp.Company)
	assert.Equal(t, "data_engineer", resp.Job)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, "strong", resp.Candidates[0].CandidateID)
	assert.Equal(t, 1, resp.Candidates[0].Rank)
	assert.NotEmpty(t, resp.Candidates[0].ImpactEvents)
	assert.Equal(t, types.RerankStatusDisabled, resp.RerankStatus)
}

func TestRankCommand_RunsAcrossSubtests(t *testing.T) {
	offlineEnv(t)
	jd, cvs := writeFixtures(t, map[string]string{"ada.json": testStrongCV, "bob.json": testWeakCV})

	// Each subtest's context is cancelled when it ends; later runs must not inherit it.
	for _, name := range []string{"first", "second", "third"} {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, "rank", "--jd", jd, "--cvs", cvs, "--json")
			require.NoError(t, err)
			var resp types.SearchResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, 2, resp.Total)
		})
	}
}

func TestRankCommand_Formatted(t *testing.T) {
	offlineEnv(t)
	jd, cvs := writeFixtures(t, map[string]string{"ada.json": testStrongCV, "bob.json": testWeakCV})

	out, err := execute(t, "rank", "--jd", jd, "--cvs", cvs, "--top-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "RANKED CANDIDATES")
	assert.Contains(t, out, "Ada (strong)")
	assert.NotContains(t, out, "Bob")
}

func TestRankCommand_SkipsMalformedFiles(t *testing.T) {
	offlineEnv(t)
	jd, cvs := writeFixtures(t, map[string]string{
		"ada.json":    testStrongCV,
		"broken.json": "not json",
		"notes.txt":   "ignored",
	})

	out, err := execute(t, "rank", "--jd", jd, "--cvs", cvs, "--json")
	require.NoError(t, err)

	var resp types.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestRankCommand_NoValidCVs(t *testing.T) {
	offlineEnv(t)
	jd, cvs := writeFixtures(t, map[string]string{"broken.json": "not json"})

	_, err := execute(t, "rank", "--jd", jd, "--cvs", cvs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid CV files")
}

func TestRankCommand_UnknownEmbedder(t *testing.T) {
	offlineEnv(t)
	jd, cvs := writeFixtures(t, map[string]string{"ada.json": testStrongCV})

	_, err := execute(t, "rank", "--jd", jd, "--cvs", cvs, "--embedder", "word2vec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestImportEmbedSearch_SQLite(t *testing.T) {
	offlineEnv(t)
	t.Setenv("CVRANK_STORE_DRIVER", "sqlite")
	t.Setenv("CVRANK_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "ranker.db"))
	jd, cvs := writeFixtures(t, map[string]string{"ada.json": testStrongCV, "bob.json": testWeakCV})

	out, err := execute(t, "import", "--company", "acme", "--job", "data", "--jd", jd, "--cvs", cvs)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 CVs into acme/data")

	var status pipeline.JobStatus
	out, err = execute(t, "status", "--company", "acme", "--job", "data", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.HasJD)
	assert.Equal(t, 2, status.CVs)
	assert.False(t, status.Ready)

	var stats retrieval.IndexStats
	out, err = execute(t, "embed", "--company", "acme", "--job", "data", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.True(t, stats.Embedded)
	assert.True(t, stats.JDEmbedded)
	assert.Equal(t, 2, stats.CVsEmbedded)

	out, err = execute(t, "status", "--company", "acme", "--job", "data", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Ready)
	assert.Equal(t, 2, status.EmbeddedCV)

	out, err = execute(t, "embed", "--company", "acme", "--job", "data")
	require.NoError(t, err)
	assert.Contains(t, out, "Already embedded")

	var resp types.SearchResponse
	out, err = execute(t, "search", "--company", "acme", "--job", "data", "--top-k", "1", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Embedded)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "strong", resp.Candidates[0].CandidateID)
}

func TestSearchCommand_UnknownJob(t *testing.T) {
	offlineEnv(t)

	_, err := execute(t, "search", "--company", "acme", "--job", "missing")
	require.Error(t, err)
	assert.True(t, types.IsDataNotFound(err))
}

func TestImportCommand_NothingToImport(t *testing.T) {
	_, err := execute(t, "import", "--company", "acme", "--job", "data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to import")
}

func TestImportCommand_InvalidJD(t *testing.T) {
	offlineEnv(t)
	path := filepath.Join(t.TempDir(), "jd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mandatory_skills": "go"}`), 0644))

	_, err := execute(t, "import", "--company", "acme", "--job", "data", "--jd", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to import JD")
}

func TestImpactCommand(t *testing.T) {
	offlineEnv(t)
	path := filepath.Join(t.TempDir(), "ada.json")
	require.NoError(t, os.WriteFile(path, []byte(testStrongCV), 0644))

	var out impactOutput
	raw, err := execute(t, "impact", "--cv", path, "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Equal(t, "strong", out.CVID)
	assert.GreaterOrEqual(t, out.Count, 1)
	assert.Zero(t, out.RelevanceRatio)

	raw, err = execute(t, "impact", "--cv", path, "--mandatory", "python,sql", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Greater(t, out.RelevanceRatio, 0.0)
	assert.NotEmpty(t, out.RelevantSkills)

	text, err := execute(t, "impact", "--cv", path)
	require.NoError(t, err)
	assert.Contains(t, text, "IMPACT EVENTS")
}

func TestMatchCommand(t *testing.T) {
	offlineEnv(t)
	t.Setenv("CVRANK_SCORING_SEMANTIC_ENABLED", "false")

	var results []types.MatchResult
	out, err := execute(t, "match", "--skill", "python", "--skill", "kubernetes", "--text", "Wrote Python services for billing", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Matched)
	assert.False(t, results[1].Matched)

	text, err := execute(t, "match", "--skill", "python", "--text", "Wrote Python services")
	require.NoError(t, err)
	assert.Contains(t, text, "SKILL MATCHES")
}

func TestMatchCommand_TextAndFileExclusive(t *testing.T) {
	_, err := execute(t, "match", "--skill", "go", "--text", "x", "--file", "y")
	require.Error(t, err)
}
