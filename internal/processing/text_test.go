package processing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avolkhov/newsdigest/internal/processing"
)

func TestCleanHTMLStripsMarkup(t *testing.T) {
	in := `<p>Breaking: <b>markets</b> rally&nbsp;&amp; rebound</p>`
	require.Equal(t, "Breaking: markets rally & rebound", processing.CleanHTML(in))
}

func TestCleanHTMLSqueezesWhitespace(t *testing.T) {
	in := "one\n\t two   three "
	require.Equal(t, "one two three", processing.CleanHTML(in))
}

func TestCleanHTMLEmpty(t *testing.T) {
	require.Equal(t, "", processing.CleanHTML(""))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", processing.Truncate("abc", 10))
	require.Equal(t, "abcde...", processing.Truncate("abcdefgh", 5))
	require.Equal(t, "", processing.Truncate("abc", 0))
}
