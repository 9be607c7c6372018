// Package artifact manages the rendered voucher files on disk: the QR images
// issuance writes, and the single-page PDF documents derived from them on
// demand. These are cached side products keyed by filename, not first-class
// records.
package artifact

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	dErrors "vouchsafe/pkg/domain-errors"
	"vouchsafe/pkg/platform/sentinel"
)

// Store is a directory of voucher artifacts. All paths handed to it are
// relative to the root; anything escaping the root is rejected.
type Store struct {
	root string
}

// NewStore creates the artifact directory if absent and returns the store.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Root returns the artifact directory.
func (s *Store) Root() string { return s.root }

// SaveImage writes one PNG under the root and returns its full path.
// Filenames are keyed by store-assigned reference, so concurrent issuance
// never collides on a path.
func (s *Store) SaveImage(name string, png []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Open returns the raw bytes of a stored image.
func (s *Store) Open(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Document position of the embedded image in millimeters on an A4 page.
const (
	pdfImageX     = 10
	pdfImageY     = 10
	pdfImageWidth = 100
)

// RenderPDF builds a single-page PDF embedding the named image and returns
// the document name and bytes. The document is regenerated on every call and
// written alongside the image with the extension swapped, so a stale copy
// never survives a re-render.
func (s *Store) RenderPDF(name string) (string, []byte, error) {
	imagePath, err := s.resolve(name)
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(imagePath); errors.Is(err, fs.ErrNotExist) {
		return "", nil, sentinel.ErrNotFound
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.Image(imagePath, pdfImageX, pdfImageY, pdfImageWidth, 0, false, "", 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not render document")
	}

	pdfName := strings.TrimSuffix(name, filepath.Ext(name)) + ".pdf"
	pdfPath, err := s.resolve(pdfName)
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(pdfPath, buf.Bytes(), 0o644); err != nil {
		return "", nil, err
	}
	return pdfName, buf.Bytes(), nil
}

// resolve joins name onto the root and refuses traversal outside it.
func (s *Store) resolve(name string) (string, error) {
	cleaned := filepath.Clean("/" + name)
	if cleaned == "/" {
		return "", dErrors.New(dErrors.CodeValidation, "empty artifact name")
	}
	return filepath.Join(s.root, cleaned), nil
}
