package osutil

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureFilePresent(t *testing.T) {
	require := require.New(t)

	f := filepath.Join(t.TempDir(), "a", "b", "events.db")
	require.NoError(EnsureFilePresent(f))
	require.FileExists(f)

	require.NoError(ioutil.WriteFile(f, []byte("keep"), 0644))
	require.NoError(EnsureFilePresent(f))

	b, err := ioutil.ReadFile(f)
	require.NoError(err)
	require.Equal("keep", string(b))
}
