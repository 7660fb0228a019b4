package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "x-thread-dl.toml")
	require.NoError(t, os.WriteFile(p, []byte(`
[download]
output_dir = "threads"
reply_limit = 20

[script]
model = "openai/gpt-4o-mini"
style = "viral"
duration = 45
fallback_models = ["anthropic/claude-3-haiku"]
`), 0o644))

	f, found, err := LoadFile(p)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "threads", f.Download.OutputDir)
	assert.Equal(t, 20, f.Download.ReplyLimit)
	assert.Equal(t, "openai/gpt-4o-mini", f.Script.Model)
	assert.Equal(t, "viral", f.Script.Style)
	assert.Equal(t, 45, f.Script.Duration)
	assert.Equal(t, []string{"anthropic/claude-3-haiku"}, f.Script.FallbackModels)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	f, found, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, File{}, f)
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(p, []byte("[download\n"), 0o644))
	_, _, err := LoadFile(p)
	assert.Error(t, err)
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("XTHREAD_TEST_A=from-file\nXTHREAD_TEST_B=from-file\n"), 0o644))

	t.Setenv("XTHREAD_TEST_A", "from-env")
	t.Setenv("XTHREAD_TEST_B", "")
	os.Unsetenv("XTHREAD_TEST_B")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), p))
	assert.Equal(t, "from-env", os.Getenv("XTHREAD_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("XTHREAD_TEST_B"))
	os.Unsetenv("XTHREAD_TEST_B")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("XTHREAD_TEST_INT", "7")
	t.Setenv("XTHREAD_TEST_BAD", "x")

	assert.Equal(t, 7, EnvInt("XTHREAD_TEST_INT", 3))
	assert.Equal(t, 3, EnvInt("XTHREAD_TEST_BAD", 3))
	assert.Equal(t, "", Env("XTHREAD_TEST_UNSET_1", "XTHREAD_TEST_UNSET_2"))
	assert.Equal(t, "7", Env("XTHREAD_TEST_UNSET_1", "XTHREAD_TEST_INT"))
	assert.Equal(t, "b", First("", "  ", "b", "c"))
	assert.Equal(t, 5, FirstPositive(0, -1, 5, 9))
}
