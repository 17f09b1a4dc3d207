package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const testJD = `{
	"job_title": "Data Engineer",
	"mandatory_skills": ["python", "sql", "airflow"],
	"sections": {
		"required_skills": "Python, SQL and Airflow",
		"responsibilities": "Build and operate batch data pipelines"
	}
}`

const testStrongCV = `{
	"id": "strong",
	"name": "Ada",
	"summary": "Data engineer building batch pipelines",
	"skills": ["python", "sql", "airflow"],
	"work_experience": [{"title": "Data Engineer", "company": "Initech", "responsibilities": [
		"Reduced ETL runtime by 40% by rewriting Airflow DAGs in Python",
		"Cut warehouse cost by 25% by moving 120 SQL reports to dbt"
	]}]
}`

const testWeakCV = `{
	"id": "weak",
	"name": "Bob",
	"summary": "Graphic designer",
	"skills": ["photoshop", "illustrator"],
	"work_experience": [{"title": "Designer", "company": "Studio", "responsibilities": ["Designed brand assets"]}]
}`

// offlineEnv points the config at the hash embedder so no model server is needed.
func offlineEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CVRANK_EMBEDDING_PROVIDER", "hash")
	t.Setenv("CVRANK_EMBEDDING_DIMENSIONS", "64")
	t.Setenv("CVRANK_STORE_DIMENSIONS", "64")
	t.Setenv("CVRANK_RERANK_ENABLED", "false")
}

// writeFixtures lays out a JD file and a CV directory, returning both paths.
func writeFixtures(t *testing.T, cvs map[string]string) (jdPath, cvDir string) {
	t.Helper()
	dir := t.TempDir()
	jdPath = filepath.Join(dir, "data_engineer.json")
	require.NoError(t, os.WriteFile(jdPath, []byte(testJD), 0644))

	cvDir = filepath.Join(dir, "cvs")
	require.NoError(t, os.MkdirAll(cvDir, 0755))
	for name, body := range cvs {
		require.NoError(t, os.WriteFile(filepath.Join(cvDir, name), []byte(body), 0644))
	}
	return jdPath, cvDir
}

// resetCommands restores every flag to its default and gives each command a
// fresh context so commands can run repeatedly in one process. Cobra only
// hands the root context down to subcommands whose context is still nil.
func resetCommands(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetCommands(ctx, sub)
	}
}

// execute runs the CLI in-process and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommands(t.Context(), rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}
