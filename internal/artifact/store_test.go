package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouchsafe/pkg/platform/sentinel"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "qr_codes"))
	require.NoError(t, err)
	return store
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	png, err := qrcode.Encode("http://127.0.0.1:8080/redeem-qr/7", qrcode.Low, 256)
	require.NoError(t, err)
	return png
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "qr_codes")
	_, err := NewStore(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := newStore(t)
	png := testPNG(t)

	path, err := store.SaveImage("qr_7.png", png)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "qr_7.png"), path)

	got, err := store.Open("qr_7.png")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(png, got), "stored bytes must round-trip unchanged")
}

func TestOpenMissingImage(t *testing.T) {
	store := newStore(t)
	_, err := store.Open("qr_404.png")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestOpenRefusesTraversal(t *testing.T) {
	store := newStore(t)
	_, err := store.Open("../../etc/passwd")
	// The path is confined to the root, so the escape resolves to a miss.
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRenderPDFEmbedsImage(t *testing.T) {
	store := newStore(t)
	_, err := store.SaveImage("qr_7.png", testPNG(t))
	require.NoError(t, err)

	name, doc, err := store.RenderPDF("qr_7.png")
	require.NoError(t, err)
	assert.Equal(t, "qr_7.pdf", name)
	require.True(t, bytes.HasPrefix(doc, []byte("%PDF")), "output must be a PDF document")

	// Regenerated on every call, and persisted alongside the image.
	onDisk, err := os.ReadFile(filepath.Join(store.Root(), "qr_7.pdf"))
	require.NoError(t, err)
	assert.Equal(t, doc, onDisk)

	_, again, err := store.RenderPDF("qr_7.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(again, []byte("%PDF")))
}

func TestRenderPDFMissingImage(t *testing.T) {
	store := newStore(t)
	_, _, err := store.RenderPDF("qr_404.png")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
