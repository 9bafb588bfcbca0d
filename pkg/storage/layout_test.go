package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLayout(t *testing.T) *CategoryLayout {
	t.Helper()
	l := NewCategoryLayout(t.TempDir(), []string{"documents", "images", "music", "videos", "others"},
		"content.json", "clients.json", zap.NewNop())
	require.NoError(t, l.Bootstrap())
	return l
}

func TestBootstrapCreatesLayout(t *testing.T) {
	l := newTestLayout(t)

	for _, category := range l.Categories() {
		info, err := os.Stat(l.Dir(category))
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		_, err = os.Stat(filepath.Join(l.Dir(category), l.ControlFileName()))
		assert.NoError(t, err)
	}
	_, err := os.Stat(l.ClientsFilePath())
	assert.NoError(t, err)

	// Bootstrap over an existing layout is a no-op, not an error.
	assert.NoError(t, l.Bootstrap())
}

func TestCategoryFor(t *testing.T) {
	l := newTestLayout(t)

	tests := []struct {
		filename string
		want     string
	}{
		{"notes.txt", "documents"},
		{"report.PDF", "documents"},
		{"photo.jpg", "images"},
		{"song.mp3", "music"},
		{"clip.mp4", "videos"},
		{"archive.zip", "others"},
		{"noextension", "others"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, l.CategoryFor(tt.filename))
		})
	}
}

func TestCategoryForUnconfiguredCategory(t *testing.T) {
	// A layout without a music directory routes .mp3 to the fallback.
	l := NewCategoryLayout(t.TempDir(), []string{"documents", "misc"},
		"content.json", "clients.json", zap.NewNop())
	require.NoError(t, l.Bootstrap())

	assert.Equal(t, "misc", l.CategoryFor("song.mp3"))
}

func TestWriteFindReadFile(t *testing.T) {
	l := newTestLayout(t)
	content := []byte("file body")

	require.NoError(t, l.WriteFile("documents", "notes.txt", content))

	category, ok := l.FindFile("notes.txt")
	require.True(t, ok)
	assert.Equal(t, "documents", category)

	data, category, err := l.ReadFile("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "documents", category)
}

func TestFindFileMissing(t *testing.T) {
	l := newTestLayout(t)

	_, ok := l.FindFile("ghost.txt")
	assert.False(t, ok)

	_, _, err := l.ReadFile("ghost.txt")
	assert.Error(t, err)
}

func TestWriteFileStripsPath(t *testing.T) {
	l := newTestLayout(t)

	require.NoError(t, l.WriteFile("documents", "../escape.txt", []byte("x")))
	_, err := os.Stat(filepath.Join(l.Dir("documents"), "escape.txt"))
	assert.NoError(t, err)
}
