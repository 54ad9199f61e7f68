package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/templates"
)

const resultsDir = "_results"

// DirStore keeps one template definition per file (.json, .yaml or .yml)
// in a directory. A template without an id takes its file's base name.
// Test history is appended as JSON lines under _results/.
type DirStore struct {
	dir string
	mu  sync.Mutex
}

// NewDir returns a DirStore rooted at dir.
func NewDir(dir string) *DirStore {
	return &DirStore{dir: dir}
}

func (s *DirStore) Migrate(_ context.Context) error {
	return eris.Wrap(os.MkdirAll(filepath.Join(s.dir, resultsDir), 0o755), "dir: migrate")
}

func (s *DirStore) Close() error { return nil }

func (s *DirStore) templateFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "dir: read %s", s.dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := e.Name()
		if templates.IsYAML(name) || strings.EqualFold(filepath.Ext(name), ".json") {
			files = append(files, filepath.Join(s.dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *DirStore) readTemplate(path string) (*model.Template, error) {
	t, err := templates.DecodeFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dir: decode %s", filepath.Base(path))
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	return t, nil
}

// ListTemplates decodes every template file, ordered by id. Files that fail
// to decode are logged and skipped.
func (s *DirStore) ListTemplates(_ context.Context) ([]model.Template, error) {
	files, err := s.templateFiles()
	if err != nil {
		return nil, err
	}
	tpls := make([]model.Template, 0, len(files))
	for _, f := range files {
		t, err := s.readTemplate(f)
		if err != nil {
			zap.L().Warn("dir: skipping template file", zap.String("file", f), zap.Error(err))
			continue
		}
		tpls = append(tpls, *t)
	}
	sort.SliceStable(tpls, func(i, j int) bool { return tpls[i].ID < tpls[j].ID })
	return tpls, nil
}

func (s *DirStore) GetTemplate(_ context.Context, templateID string) (*model.Template, error) {
	path, err := s.find(templateID)
	if err != nil || path == "" {
		return nil, err
	}
	return s.readTemplate(path)
}

// find locates the file holding templateID, checking the conventional
// <id>.<ext> names before scanning file contents.
func (s *DirStore) find(templateID string) (string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(s.dir, templateID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	files, err := s.templateFiles()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		t, err := s.readTemplate(f)
		if err != nil {
			continue
		}
		if t.ID == templateID {
			return f, nil
		}
	}
	return "", nil
}

// SaveTemplate writes the template as <id>.json, replacing any existing
// file for the same id.
func (s *DirStore) SaveTemplate(_ context.Context, t model.Template) error {
	if t.ID == "" {
		return eris.New("store: template id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := templates.ExportTemplate(&t)
	if err != nil {
		return eris.Wrapf(err, "dir: export template %s", t.ID)
	}
	target := filepath.Join(s.dir, t.ID+".json")
	if existing, err := s.find(t.ID); err == nil && existing != "" && existing != target {
		if err := os.Remove(existing); err != nil {
			return eris.Wrapf(err, "dir: replace %s", filepath.Base(existing))
		}
	}
	return eris.Wrapf(os.WriteFile(target, b, 0o644), "dir: write template %s", t.ID)
}

func (s *DirStore) SaveTemplates(ctx context.Context, tpls []model.Template) (int64, error) {
	var n int64
	for _, t := range tpls {
		if err := s.SaveTemplate(ctx, t); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *DirStore) DeleteTemplate(_ context.Context, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(templateID)
	if err != nil {
		return err
	}
	if path == "" {
		return eris.Wrapf(ErrNotFound, "template %s", templateID)
	}
	return eris.Wrapf(os.Remove(path), "dir: delete template %s", templateID)
}

func (s *DirStore) resultsFile(templateID string) string {
	return filepath.Join(s.dir, resultsDir, templateID+".jsonl")
}

func (s *DirStore) SaveTestResult(_ context.Context, rec *model.TestRecord) error {
	if _, err := prepareRecord(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRecords(rec.TemplateID, []model.TestRecord{*rec})
}

func (s *DirStore) SaveTestResults(_ context.Context, recs []model.TestRecord) (int64, error) {
	byTemplate := make(map[string][]model.TestRecord)
	var order []string
	for i := range recs {
		if _, err := prepareRecord(&recs[i]); err != nil {
			return 0, err
		}
		id := recs[i].TemplateID
		if _, ok := byTemplate[id]; !ok {
			order = append(order, id)
		}
		byTemplate[id] = append(byTemplate[id], recs[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range order {
		if err := s.appendRecords(id, byTemplate[id]); err != nil {
			return n, err
		}
		n += int64(len(byTemplate[id]))
	}
	return n, nil
}

func (s *DirStore) appendRecords(templateID string, recs []model.TestRecord) error {
	if err := os.MkdirAll(filepath.Join(s.dir, resultsDir), 0o755); err != nil {
		return eris.Wrap(err, "dir: create results dir")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return eris.Wrapf(err, "dir: marshal test result %s", rec.ID)
		}
	}
	f, err := os.OpenFile(s.resultsFile(templateID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "dir: open results for %s", templateID)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return eris.Wrapf(err, "dir: append results for %s", templateID)
	}
	return eris.Wrap(f.Close(), "dir: close results")
}

// ListTestResults returns the newest test runs for a template first.
func (s *DirStore) ListTestResults(_ context.Context, templateID string, limit int) ([]model.TestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := readRecords(s.resultsFile(templateID))
	if err != nil {
		return nil, eris.Wrapf(err, "dir: results for %s", templateID)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].TestedAt.After(recs[j].TestedAt) })
	if n := resultLimit(limit); len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}

// GetTestResult scans every template's history for the run with id.
func (s *DirStore) GetTestResult(_ context.Context, id string) (*model.TestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(s.dir, resultsDir, "*.jsonl"))
	if err != nil {
		return nil, eris.Wrap(err, "dir: glob results")
	}
	for _, path := range files {
		recs, err := readRecords(path)
		if err != nil {
			return nil, eris.Wrapf(err, "dir: results in %s", filepath.Base(path))
		}
		for i := range recs {
			if recs[i].ID == id {
				return &recs[i], nil
			}
		}
	}
	return nil, nil
}

// readRecords decodes a JSON-lines history file. A missing file holds no
// records.
func readRecords(path string) ([]model.TestRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	var recs []model.TestRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var rec model.TestRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, eris.Wrap(err, "decode")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(sc.Err(), "scan")
}
