package ocr

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/model"
)

// ErrDocumentNotFound is returned when a document id does not resolve to a
// file.
var ErrDocumentNotFound = eris.New("ocr: document not found")

var (
	textExts = map[string]bool{".txt": true, ".md": true}
	ocrExts  = map[string]bool{".pdf": true}
)

// DirSource serves documents from a directory. Text files are read as-is;
// PDFs go through the extractor. Document ids are paths relative to the
// directory; absolute paths are used unchanged.
type DirSource struct {
	dir       string
	extractor Extractor
	normalize bool
}

// NewDirSource creates a DirSource. A nil extractor limits the source to
// plain-text documents.
func NewDirSource(dir string, extractor Extractor, normalize bool) *DirSource {
	return &DirSource{dir: dir, extractor: extractor, normalize: normalize}
}

// GetDocumentText returns the full document text, pages separated by a
// blank line.
func (s *DirSource) GetDocumentText(ctx context.Context, documentID string) (string, error) {
	doc, err := s.Document(ctx, documentID)
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Document loads and extracts one document.
func (s *DirSource) Document(ctx context.Context, documentID string) (*model.Document, error) {
	path, err := s.resolve(documentID)
	if err != nil {
		return nil, err
	}

	var pages []string
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case textExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: read %s", path)
		}
		pages = splitPages(string(data))
	case s.extractor == nil:
		return nil, eris.Errorf("ocr: no extractor configured for %s", documentID)
	default:
		pages, err = s.extractor.ExtractPages(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	if s.normalize {
		for i := range pages {
			pages[i] = Normalize(pages[i])
		}
	}

	zap.L().Debug("ocr: document loaded",
		zap.String("document_id", documentID),
		zap.Int("pages", len(pages)),
	)
	doc := model.NewDocument(documentID, pages)
	return &doc, nil
}

// ListDocuments returns the ids of every supported file directly inside
// the directory, sorted.
func (s *DirSource) ListDocuments() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: list %s", s.dir)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if textExts[ext] || (ocrExts[ext] && s.extractor != nil) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *DirSource) resolve(documentID string) (string, error) {
	if documentID == "" {
		return "", eris.New("ocr: document id is required")
	}
	path := documentID
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, filepath.Clean(documentID))
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", eris.Wrapf(ErrDocumentNotFound, "%s", documentID)
	}
	return path, nil
}
