package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPassword_FromConfig(t *testing.T) {
	t.Parallel()

	pw, err := seedPassword(Config{SeedPassword: "from-env"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)
}

func TestSeedPassword_NoTerminal(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	var out bytes.Buffer
	_, err = seedPassword(Config{}, f, &out)
	require.ErrorIs(t, err, errNoSeedPassword)
	assert.Empty(t, out.String(), "no prompt without a terminal")
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	f, err := parseFlags([]string{"-clear-database", "-seed-user", "admin", "-seed-email", "admin@example.com"})
	require.NoError(t, err)
	assert.True(t, f.clearDatabase)
	assert.False(t, f.migrateOnly)
	assert.Equal(t, "admin", f.seedUser)
	assert.Equal(t, "admin@example.com", f.seedEmail)

	f, err = parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, runFlags{}, f)

	_, err = parseFlags([]string{"serve"})
	assert.ErrorContains(t, err, "unexpected arguments")

	_, err = parseFlags([]string{"-no-such-flag"})
	assert.Error(t, err)
}
