package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://files.local/")
	require.NoError(t, err)

	ctx := context.Background()
	u, err := s.Upload(ctx, strings.NewReader("%PDF-1.4"), "papers/p1/manuscript.pdf", UploadOptions{ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/papers/p1/manuscript.pdf", u)

	rel, ok := s.ObjectPath(u)
	require.True(t, ok)
	assert.Equal(t, "papers/p1/manuscript.pdf", rel)

	f, err := s.Open(rel)
	require.NoError(t, err)
	_ = f.Close()

	require.NoError(t, s.Delete(ctx, rel))
	_, err = os.Stat(dir + "/papers/p1/manuscript.pdf")
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Delete(ctx, rel))
}

func TestUploadWithoutUpsertRejectsExisting(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://files.local")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Upload(ctx, strings.NewReader("a"), "archive/i1/x.pdf", UploadOptions{})
	require.NoError(t, err)
	_, err = s.Upload(ctx, strings.NewReader("b"), "archive/i1/x.pdf", UploadOptions{})
	assert.ErrorIs(t, err, ErrObjectExists)
	_, err = s.Upload(ctx, strings.NewReader("c"), "archive/i1/x.pdf", UploadOptions{Upsert: true})
	assert.NoError(t, err)
}

func TestResolveStaysInsideBaseDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://files.local")
	require.NoError(t, err)

	p, err := s.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, dir))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_paper_v2.pdf", SanitizeFilename("my paper v2.pdf"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "file", SanitizeFilename(".."))
}
