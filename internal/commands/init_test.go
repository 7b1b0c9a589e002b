package commands_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakov55994/manage-sub003/internal/catalog"
	"github.com/yakov55994/manage-sub003/internal/commands"
	"github.com/yakov55994/manage-sub003/internal/fixedwidth"
)

func runPaybatch(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func initProject(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	args := append([]string{"init", dir, "--name", "Acme Build", "--institute", "12345678"}, extra...)
	_, err := runPaybatch(t, args...)
	require.NoError(t, err)
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := initProject(t, "--no-git")

	expectedDirs := []string{
		"reference",
		"invoices",
		"batches",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	for _, f := range []string{"paybatch.yaml", "invoices/invoices.csv", "reference/layout.yaml", "logs/audit-log.csv"} {
		_, err := os.Stat(filepath.Join(dir, f))
		require.NoError(t, err, "file %s should exist", f)
	}
	_, err := os.Stat(filepath.Join(dir, ".git"))
	assert.True(t, os.IsNotExist(err), "--no-git should not create a repository")
}

func TestInit_Config(t *testing.T) {
	dir := initProject(t, "--no-git", "--sender", "042")

	data, err := os.ReadFile(filepath.Join(dir, "paybatch.yaml"))
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Acme Build")
	assert.Contains(t, contents, "12345678")
	assert.Contains(t, contents, "042")
	assert.Contains(t, contents, "reference/layout.yaml")
}

func TestInit_Catalog(t *testing.T) {
	dir := initProject(t, "--no-git")

	cat, err := catalog.Load(filepath.Join(dir, catalog.DefaultPath))
	require.NoError(t, err)
	assert.Len(t, cat.Banks(), len(catalog.DefaultBanks()))
}

func TestInit_Layout(t *testing.T) {
	dir := initProject(t, "--no-git")

	l, err := fixedwidth.LoadLayout(filepath.Join(dir, "reference", "layout.yaml"))
	require.NoError(t, err)
	assert.Equal(t, fixedwidth.DefaultLayout(), l)
}

func TestInit_RequiresName(t *testing.T) {
	dir := t.TempDir()
	_, err := runPaybatch(t, "init", dir, "--institute", "12345678")
	require.Error(t, err, "init without --name should fail")
}

func TestInit_RejectsNonNumericInstitute(t *testing.T) {
	dir := t.TempDir()
	_, err := runPaybatch(t, "init", dir, "--name", "Acme", "--institute", "ACME")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "institute_id")
}

func TestInit_RefusesExistingProject(t *testing.T) {
	dir := initProject(t, "--no-git")

	_, err := runPaybatch(t, "init", dir, "--name", "Acme Build", "--institute", "12345678", "--no-git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_GitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := initProject(t)

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git should exist")

	log := exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "init:")

	authorLog := exec.Command("git", "log", "--format=%an <%ae>", "-1")
	authorLog.Dir = dir
	out, err = authorLog.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "Paybatch <paybatch@localhost>")
}

func TestInit_Gitignore(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := initProject(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	contents := string(data)

	for _, pattern := range []string{"*.lock", "*.tmp"} {
		assert.Contains(t, contents, pattern, ".gitignore should contain %s", pattern)
	}
}
