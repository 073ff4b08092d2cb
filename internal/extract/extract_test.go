package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText_FormFeedPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("first page\fsecond page"), 0o644))

	pages, err := PlainText(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, Page{Source: "policy.txt", Number: 1, Text: "first page"}, pages[0])
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "second page", pages[1].Text)
}

func TestRegistry_DiscoverSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.md", "c.csv", "d.PDF"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	r := NewRegistry()
	files, err := r.Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.md"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "d.PDF"),
	}, files)
}

func TestRegistry_CustomExtractor(t *testing.T) {
	r := NewRegistry()
	r.Register(".CSV", ExtractorFunc(func(path string) ([]Page, error) {
		return []Page{{Source: filepath.Base(path), Number: 1, Text: "rows"}}, nil
	}))
	assert.True(t, r.Supports("x.csv"))

	pages, err := r.Extract("/tmp/x.csv")
	require.NoError(t, err)
	assert.Equal(t, "rows", pages[0].Text)

	_, err = r.Extract("/tmp/x.docx")
	assert.Error(t, err)
}

func TestPDF_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	_, err := PDF(path)
	assert.Error(t, err)
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := NewRegistry().Discover(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
