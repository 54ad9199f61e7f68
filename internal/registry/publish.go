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

// PublishReport counts the registry pages written by PublishTemplates.
type PublishReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// PublishTemplates writes templates to the Notion registry, updating the
// page that already carries a template's id and creating one otherwise.
func PublishTemplates(ctx context.Context, client notion.Client, dbID string, tpls []model.Template) (*PublishReport, error) {
	pages, err := notion.QueryAll(ctx, client, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: index registry pages")
	}
	existing := make(map[string]string, len(pages))
	for _, p := range pages {
		if prop, ok := p.Properties[PropTemplateID]; ok {
			if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
				existing[notion.PlainText(rtp.RichText)] = string(p.ID)
			}
		}
	}

	rep := &PublishReport{}
	for i := range tpls {
		t := &tpls[i]
		if err := ctx.Err(); err != nil {
			return rep, eris.Wrap(err, "registry: publish cancelled")
		}
		props, err := templateProperties(t)
		if err != nil {
			return rep, err
		}

		if pageID, ok := existing[t.ID]; ok {
			if _, err := client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
				return rep, eris.Wrapf(err, "registry: update template %s", t.ID)
			}
			rep.Updated++
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		}
		if _, err := client.CreatePage(ctx, req); err != nil {
			return rep, eris.Wrapf(err, "registry: create template %s", t.ID)
		}
		rep.Created++
	}

	zap.L().Info("registry: templates published",
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
	)
	return rep, nil
}

func templateProperties(t *model.Template) (notionapi.Properties, error) {
	if t.ID == "" {
		return nil, eris.New("registry: template id is required")
	}
	data, err := templates.Export(t)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: export template %s", t.ID)
	}

	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: notion.RichText(t.Name),
		},
		PropTemplateID: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: notion.RichText(t.ID),
		},
		PropVersion: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: notion.RichText(t.Version),
		},
		PropDescription: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: notion.RichText(t.Description),
		},
		PropActive: notionapi.CheckboxProperty{
			Type:     notionapi.PropertyTypeCheckbox,
			Checkbox: t.Active(),
		},
		PropTemplateData: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: notion.RichText(string(data)),
		},
	}
	if t.Vendor != "" {
		props[PropVendor] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: t.Vendor},
		}
	}
	return props, nil
}
