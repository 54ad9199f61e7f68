// Package registry syncs template definitions with the shared Notion
// template registry and with template bundle files.
package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/templates"
	"github.com/sells-group/invoice-templates/pkg/notion"
)

// Notion property names of the template registry database.
const (
	PropName         = "Name"
	PropTemplateID   = "Template ID"
	PropVendor       = "Vendor"
	PropVersion      = "Version"
	PropDescription  = "Description"
	PropActive       = "Active"
	PropTemplateData = "Template Data"
)

// LoadTemplates queries the Notion template registry and decodes every
// page into a template. With activeOnly set, only pages whose Active
// checkbox is ticked are fetched. Malformed pages are logged and skipped.
func LoadTemplates(ctx context.Context, client notion.Client, dbID string, activeOnly bool) ([]model.Template, error) {
	var pages []notionapi.Page
	var err error
	if activeOnly {
		pages, err = notion.QueryChecked(ctx, client, dbID, PropActive, true)
	} else {
		pages, err = notion.QueryAll(ctx, client, dbID, nil)
	}
	if err != nil {
		return nil, eris.Wrap(err, "registry: load templates")
	}

	tpls := make([]model.Template, 0, len(pages))
	for _, p := range pages {
		t, err := parseTemplatePage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed template page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		tpls = append(tpls, *t)
	}
	return tpls, nil
}

func parseTemplatePage(p notionapi.Page) (*model.Template, error) {
	var data string
	if prop, ok := p.Properties[PropTemplateData]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			data = notion.PlainText(rtp.RichText)
		}
	}
	if data == "" {
		return nil, eris.Errorf("missing %s property", PropTemplateData)
	}
	t, err := templates.Decode([]byte(data))
	if err != nil {
		return nil, err
	}

	// Page properties take precedence over metadata embedded in the data.
	if prop, ok := p.Properties[PropTemplateID]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			if id := notion.PlainText(rtp.RichText); id != "" {
				t.ID = id
			}
		}
	}
	if prop, ok := p.Properties[PropName]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			if name := notion.PlainText(tp.Title); name != "" {
				t.Name = name
			}
		}
	}
	if prop, ok := p.Properties[PropVendor]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok && sp.Select.Name != "" {
			t.Vendor = sp.Select.Name
		}
	}
	if prop, ok := p.Properties[PropVersion]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			if v := notion.PlainText(rtp.RichText); v != "" {
				t.Version = v
			}
		}
	}
	if prop, ok := p.Properties[PropDescription]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			if d := notion.PlainText(rtp.RichText); d != "" {
				t.Description = d
			}
		}
	}
	if prop, ok := p.Properties[PropActive]; ok {
		if cp, ok := prop.(*notionapi.CheckboxProperty); ok {
			active := cp.Checkbox
			t.IsActive = &active
		}
	}

	if t.ID == "" {
		return nil, eris.Errorf("missing %s property", PropTemplateID)
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	return t, nil
}
