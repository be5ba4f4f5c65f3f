package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilesystemAllowsLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	err := validateJournalFilesystemWithDetector(path, func(string) (string, error) {
		return "ext4", nil
	})
	require.NoError(t, err)
}

func TestValidateFilesystemRejectsNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	err := validateJournalFilesystemWithDetector(path, func(string) (string, error) {
		return "nfs", nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nfs")
	assert.Contains(t, err.Error(), "journal.path")
}

func TestValidateFilesystemInspectsNearestExistingPath(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "nested", "deeper", "journal.db")

	var inspected string
	err := validateJournalFilesystemWithDetector(path, func(p string) (string, error) {
		inspected = p
		return "ext4", nil
	})
	require.NoError(t, err)
	assert.Equal(t, root, inspected)
}

func TestIsNetworkFilesystem(t *testing.T) {
	cases := []struct {
		fs   string
		want bool
	}{
		{"nfs", true},
		{"SMBFS", true},
		{" cifs ", true},
		{"ext4", false},
		{"0x6969", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isNetworkFilesystem(tc.fs), "fs=%q", tc.fs)
	}
}
