package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"complaintdesk/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		system  string
		want    models.Theme
	}{
		{"missing file, no system", "", "", models.ThemeLight},
		{"missing file, dark system", "", "dark", models.ThemeDark},
		{"stored dark", "theme: dark\n", "light", models.ThemeDark},
		{"stored upper case", "theme: DARK\n", "", models.ThemeDark},
		{"stored junk, system dark", "theme: purple\n", "dark", models.ThemeDark},
		{"unparseable", "theme: [\n", "", models.ThemeLight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(SystemSchemeEnv, tt.system)
			path := filepath.Join(t.TempDir(), "prefs.yaml")
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			}

			s, err := Open(path)

			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Theme())
		})
	}
}

func TestToggle_Persists(t *testing.T) {
	t.Setenv(SystemSchemeEnv, "")
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	theme, err := s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, theme)

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, reopened.Theme())

	theme, err = reopened.Toggle()
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, theme)
}

func TestSetTheme(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)

	assert.Error(t, s.SetTheme("sepia"))
	require.NoError(t, s.SetTheme(models.ThemeDark))
	assert.Equal(t, models.ThemeDark, s.Theme())
}
