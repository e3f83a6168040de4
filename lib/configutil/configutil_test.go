package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username  string            `json:"username"`
	Fetch     int               `json:"fetch"`
	BatchSize int               `json:"batch_size"`
	Headers   map[string]string `json:"headers"`
}

func write(t testing.TB, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0644)
	require.NoError(t, err)
}

func TestLocalName(t *testing.T) {
	require.Equal(t, filepath.Join("conf", "bggstats.local.json5"), LocalName(filepath.Join("conf", "bggstats.json5")))
	require.Equal(t, "config.local", LocalName("config"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "bggstats.json5")

	write(t, name, `{
		// comments and trailing commas are fine
		username: "Percy0715",
		fetch: 200,
		headers: {authorization: "Bearer a"},
	}`)
	write(t, filepath.Join(dir, "bggstats.local.json5"), `{fetch: 50}`)

	config, err := Load(name, testConfig{BatchSize: 100, Fetch: 5000})
	require.NoError(t, err)
	require.Equal(t, testConfig{
		Username:  "Percy0715",
		Fetch:     50,
		BatchSize: 100,
		Headers:   map[string]string{"authorization": "Bearer a"},
	}, config)
}

func TestLoadOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "bggstats.local.json5"), `{username: "someone"}`)

	config, err := Load(filepath.Join(dir, "bggstats.json5"), testConfig{Fetch: 5000})
	require.NoError(t, err)
	require.Equal(t, testConfig{Username: "someone", Fetch: 5000}, config)
}

func TestLoadMissing(t *testing.T) {
	defaults := testConfig{Fetch: 5000}
	config, err := Load(filepath.Join(t.TempDir(), "bggstats.json5"), defaults)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, defaults, config)
}

func TestLoadInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bggstats.json5")
	write(t, name, `{username: `)

	_, err := Load(name, testConfig{})
	require.Error(t, err)
	require.False(t, os.IsNotExist(err))
}

func TestLoadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	write(t, filepath.Join(root, "bggstats.json5"), `{username: "found"}`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() {
		os.Chdir(wd)
	})

	config, path, err := LoadRecursively("bggstats.json5", testConfig{})
	require.NoError(t, err)
	require.Equal(t, "found", config.Username)
	require.Equal(t, "bggstats.json5", filepath.Base(path))
}
