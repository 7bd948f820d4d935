package configutil

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/validator.v2"
)

type graphConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Retries      int           `yaml:"retries" validate:"min=1"`
}

type testConfig struct {
	Name   string            `yaml:"name" validate:"nonzero"`
	Queues []string          `yaml:"queues"`
	Labels map[string]string `yaml:"labels"`
	Graph  graphConfig       `yaml:"graph"`
}

const baseConfig = `
name: base
queues:
  - q1
labels:
  team: infra
graph:
  poll_interval: 100ms
  retries: 3
`

const extendingConfig = `
extends: %s
queues:
  - q2
labels:
  zone: dca1
graph:
  retries: 5
`

func writeFile(t *testing.T, dir, contents string) string {
	f, err := ioutil.TempFile(dir, "config-*.yaml")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	return f.Name()
}

func TestLoadSingleFile(t *testing.T) {
	require := require.New(t)

	dir, err := ioutil.TempDir("", "configutil")
	require.NoError(err)
	defer os.RemoveAll(dir)

	var c testConfig
	require.NoError(Load(writeFile(t, dir, baseConfig), &c))
	require.Equal("base", c.Name)
	require.Equal(100*time.Millisecond, c.Graph.PollInterval)
	require.Equal(3, c.Graph.Retries)
}

func TestLoadExtendsMergesMapsAndReplacesLists(t *testing.T) {
	require := require.New(t)

	dir, err := ioutil.TempDir("", "configutil")
	require.NoError(err)
	defer os.RemoveAll(dir)

	base := writeFile(t, dir, baseConfig)
	ext := writeFile(t, dir, fmt.Sprintf(extendingConfig, filepath.Base(base)))

	var c testConfig
	require.NoError(Load(ext, &c))
	require.Equal("base", c.Name)
	require.Equal([]string{"q2"}, c.Queues)
	require.Equal(map[string]string{"team": "infra", "zone": "dca1"}, c.Labels)
	require.Equal(5, c.Graph.Retries)
	require.Equal(100*time.Millisecond, c.Graph.PollInterval)
}

func TestLoadCycle(t *testing.T) {
	require := require.New(t)

	dir, err := ioutil.TempDir("", "configutil")
	require.NoError(err)
	defer os.RemoveAll(dir)

	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(ioutil.WriteFile(a, []byte("extends: b.yaml\n"), 0644))
	require.NoError(ioutil.WriteFile(b, []byte("extends: a.yaml\n"), 0644))

	var c testConfig
	require.Equal(ErrCycleRef, Load(a, &c))
}

func TestLoadValidationError(t *testing.T) {
	require := require.New(t)

	dir, err := ioutil.TempDir("", "configutil")
	require.NoError(err)
	defer os.RemoveAll(dir)

	var c testConfig
	err = Load(writeFile(t, dir, "graph:\n  retries: 0\n"), &c)
	require.Error(err)

	verr, ok := err.(ValidationError)
	require.True(ok)
	require.Equal(validator.ErrorArray{validator.ErrZeroValue}, verr.ErrForField("Name"))
}

func TestLoadMissingFile(t *testing.T) {
	var c testConfig
	require.Error(t, Load("./does-not-exist.yaml", &c))
}
