package command

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfileMissingFileGivesDefaults(t *testing.T) {
	p, err := loadProfile(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultProfile(), p)
}

func TestSaveAndLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	want := Profile{Host: "relay.local", Port: 7100, OperatorID: "bob", Token: "tok", Legacy: true}

	require.NoError(t, saveProfile(path, want))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadProfileKeepsDefaultsForUnsetKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("operator_id = \" bob \"\nhost = \"\"\n"), 0600))

	p, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultHost, p.Host, "blank host falls back")
	assert.Equal(t, defaultPort, p.Port)
	assert.Equal(t, "bob", p.OperatorID)
	assert.False(t, p.Legacy)
}

func TestLoadProfileRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"port_zero":  "port = 0\n",
		"port_large": "port = 70000\n",
		"not_toml":   "host = \n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0600))

			_, err := loadProfile(path)
			assert.Error(t, err)
		})
	}
}
