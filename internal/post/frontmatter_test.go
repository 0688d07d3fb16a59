package post

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrontMatter_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantBody string
	}{
		{
			name:     "body preserved verbatim",
			src:      "---\ntitle: t\n---\nline one\nline two\n",
			wantBody: "line one\nline two\n",
		},
		{
			name:     "empty metadata block",
			src:      "---\n---\nbody\n",
			wantBody: "body\n",
		},
		{
			name:     "closing delimiter on final line",
			src:      "---\ntitle: t\n---",
			wantBody: "",
		},
		{
			name:     "horizontal rule in body stays in body",
			src:      "---\ntitle: t\n---\nabove\n\n---\n\nbelow\n",
			wantBody: "above\n\n---\n\nbelow\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body, err := splitFrontMatter([]byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestSplitFrontMatter_EmptyBlockYieldsZeroMeta(t *testing.T) {
	meta, _, err := splitFrontMatter([]byte("---\n---\nbody\n"))
	require.NoError(t, err)
	assert.Zero(t, meta.Title)
	assert.Zero(t, meta.Layout)
	assert.Nil(t, meta.Custom)
}

func TestToStringSlice_ScalarShorthand(t *testing.T) {
	got, err := toStringSlice("databases")
	require.NoError(t, err)
	assert.Equal(t, []string{"databases"}, got)

	none, err := toStringSlice(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestToDate_NilIsZero(t *testing.T) {
	d, err := toDate(nil)
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}
