package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_Render(t *testing.T) {
	m := NewMarkdown("github")

	t.Run("headings get anchors", func(t *testing.T) {
		out, err := m.Render([]byte("# Counting items\n"))
		require.NoError(t, err)
		assert.Contains(t, string(out), `<h1 id="counting-items">Counting items</h1>`)
	})

	t.Run("gfm strikethrough", func(t *testing.T) {
		out, err := m.Render([]byte("~~fixtures~~ factories\n"))
		require.NoError(t, err)
		assert.Contains(t, string(out), "<del>fixtures</del>")
	})

	t.Run("gfm table", func(t *testing.T) {
		out, err := m.Render([]byte("| a | b |\n|---|---|\n| 1 | 2 |\n"))
		require.NoError(t, err)
		assert.Contains(t, string(out), "<table>")
	})

	t.Run("emoji shortcode", func(t *testing.T) {
		out, err := m.Render([]byte("ship it :smile:\n"))
		require.NoError(t, err)
		assert.NotContains(t, string(out), ":smile:")
	})

	t.Run("raw html passes through", func(t *testing.T) {
		out, err := m.Render([]byte(`<img src="/images/press.png" alt="press">` + "\n"))
		require.NoError(t, err)
		assert.Contains(t, string(out), `<img src="/images/press.png"`)
	})
}

func TestMarkdown_FencedCodeHighlighting(t *testing.T) {
	m := NewMarkdown("github")

	src := "```go\nfunc main() {\n\tprintln(\"hi\")\n}\n```\n"
	out, err := m.Render([]byte(src))
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<pre")
	assert.Contains(t, html, "main")
	// Inline styles mean no stylesheet is required.
	assert.Contains(t, html, "style=")
}

func TestMarkdown_UnknownLanguageAndStyle(t *testing.T) {
	m := NewMarkdown("no-such-style")

	out, err := m.Render([]byte("```klingon\nqapla'\n```\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "qapla&#39;")
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tags stripped",
			in:   "<p>Counting <em>lazy</em> collections</p>",
			want: "Counting lazy collections",
		},
		{
			name: "script and style skipped",
			in:   "<p>visible</p><script>var x = 1;</script><style>p{}</style>",
			want: "visible",
		},
		{
			name: "whitespace normalized",
			in:   "<p>one\n\n   two</p>\n<p>three</p>",
			want: "one two three",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.in))
		})
	}
}

func TestExtractText_FeedsWordCounts(t *testing.T) {
	m := NewMarkdown("github")
	out, err := m.Render([]byte("A post about **efficient** file reading.\n"))
	require.NoError(t, err)

	plain := ExtractText(string(out))
	assert.Equal(t, "A post about efficient file reading.", plain)
	assert.Len(t, strings.Fields(plain), 6)
}
