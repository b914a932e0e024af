package towns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/springfield-ops/townctl/internal/api"
)

func TestSelectFiles(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"2025/01/a@b.com.pb",
		"2025/02/c@d.com.pb",
		"2025/02/notes.txt",
		"top.pb",
	} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	all, err := SelectFiles(root, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	feb, err := SelectFiles(root, "2025/02/*.pb")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "2025", "02", "c@d.com.pb")}, feb)

	_, err = SelectFiles(root, "[")
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "Town.PB")
	require.NoError(t, os.WriteFile(ok, make([]byte, 10), 0o644))

	lf, err := ValidateFile(ok, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 10, lf.Size)
	assert.Equal(t, "Town.PB", lf.Name)

	_, err = ValidateFile(ok, 9)
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = ValidateFile("", 10)
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = ValidateFile(filepath.Join(dir, "missing.pb"), 10)
	assert.Error(t, err)

	_, err = ValidateFile(dir+string(os.PathSeparator)+"x.pb", 10)
	assert.Error(t, err)
}

func TestNamingHelpers(t *testing.T) {
	email, ok := EmailFromFile("/backups/homer@example.com.pb")
	assert.True(t, ok)
	assert.Equal(t, "homer@example.com", email)

	_, ok = EmailFromFile("mytown.pb")
	assert.False(t, ok)

	assert.Equal(t, "bart's Town", DefaultTownName("bart@x.com"))
	assert.Equal(t, "1.5 MB", FormatSize(3*MiB/2))
	assert.Equal(t, "512 B", FormatSize(512))
}

func TestExportPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "a@b.com.pb", ExportPath("a@b.com", ""))
	assert.Equal(t, filepath.Join(dir, "a@b.com.pb"), ExportPath("a@b.com", dir))
	assert.Equal(t, filepath.Join(dir, "out.pb"), ExportPath("a@b.com", filepath.Join(dir, "out.pb")))
}
