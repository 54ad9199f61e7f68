package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
)

// templateRow is the column set shared by the SQL stores.
type templateRow struct {
	ID          string
	Name        string
	Vendor      string
	Version     string
	Active      bool
	Definition  []byte
	ContentHash string
}

func newTemplateRow(t model.Template) (*templateRow, error) {
	if t.ID == "" {
		return nil, eris.New("store: template id is required")
	}
	def, err := json.Marshal(t)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal template %s", t.ID)
	}
	hash, err := patterns.Hash(t)
	if err != nil {
		return nil, eris.Wrapf(err, "store: hash template %s", t.ID)
	}
	return &templateRow{
		ID:          t.ID,
		Name:        t.Name,
		Vendor:      t.Vendor,
		Version:     t.Version,
		Active:      t.Active(),
		Definition:  def,
		ContentHash: hash,
	}, nil
}

func decodeTemplate(id string, def []byte) (*model.Template, error) {
	var t model.Template
	if err := json.Unmarshal(def, &t); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal template %s", id)
	}
	t.ID = id
	return &t, nil
}

// prepareRecord assigns an id and timestamp to a new test record.
func prepareRecord(rec *model.TestRecord) ([]byte, error) {
	if rec.TemplateID == "" {
		return nil, eris.New("store: test record template id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.TestedAt.IsZero() {
		rec.TestedAt = time.Now().UTC()
	}
	b, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal test result %s", rec.ID)
	}
	return b, nil
}

func resultLimit(limit int) int {
	if limit <= 0 {
		return DefaultResultLimit
	}
	return limit
}
