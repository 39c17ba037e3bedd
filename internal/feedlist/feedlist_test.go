package feedlist_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avolkhov/newsdigest/internal/feedlist"
)

func TestLoadSkipsBlanksAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.txt")
	content := "https://example.com/a.xml\n\n  \n# disabled feed\nhttps://example.com/b.xml  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := feedlist.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a.xml", "https://example.com/b.xml"}, urls)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := feedlist.Load(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}
