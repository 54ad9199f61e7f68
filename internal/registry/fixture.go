package registry

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/templates"
)

// LoadTemplatesFromFile reads a bundle file holding a JSON array of full
// template definitions. Every element is decoded with the same shape rules
// as a single import, and one bad element fails the bundle.
func LoadTemplatesFromFile(path string) ([]model.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read template bundle")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal template bundle")
	}

	tpls := make([]model.Template, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		t, err := templates.Decode(r)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: bundle entry %d", i)
		}
		if t.ID == "" {
			return nil, eris.Errorf("registry: bundle entry %d has no template_id", i)
		}
		if seen[t.ID] {
			return nil, eris.Errorf("registry: duplicate template_id %s in bundle", t.ID)
		}
		seen[t.ID] = true
		if t.Name == "" {
			t.Name = t.ID
		}
		tpls = append(tpls, *t)
	}
	return tpls, nil
}
