package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-templates/internal/model"
)

const amazonData = `{
  "identification": {"markers": [{"text": "amazon.com", "required": true}, {"text": "Order Summary", "required": false}]},
  "fields": [
    {"field_name": "order_number", "data_type": "string", "extraction": {"regex": "Order #(\\d{3}-\\d{7}-\\d{7})"}},
    {"field_name": "grand_total", "data_type": "currency", "extraction": {"regex": "Grand Total:\\s*(\\S+)"}, "validation": {"required": true}}
  ]
}`

// makeTemplatePage builds a fake notionapi.Page with template registry properties.
func makeTemplatePage(id, templateID, name, vendor, data string, active bool) notionapi.Page {
	props := make(notionapi.Properties)
	props[PropName] = &notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{{PlainText: name}},
	}
	props[PropTemplateID] = &notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{{PlainText: templateID}},
	}
	props[PropVendor] = &notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: vendor},
	}
	props[PropActive] = &notionapi.CheckboxProperty{
		Type:     notionapi.PropertyTypeCheckbox,
		Checkbox: active,
	}
	// Long definitions arrive split across several rich text objects.
	half := len(data) / 2
	props[PropTemplateData] = &notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{PlainText: data[:half]},
			{PlainText: data[half:]},
		},
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func TestLoadTemplates_Success(t *testing.T) {
	mc := new(mockTemplateDB)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "t-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeTemplatePage("p1", "amazon", "Amazon Order", "Amazon", amazonData, true),
				makeTemplatePage("p2", "amazon-legacy", "Amazon Legacy", "Amazon", amazonData, false),
			},
			HasMore: false,
		}, nil).Once()

	tpls, err := LoadTemplates(ctx, mc, "t-db", false)
	require.NoError(t, err)
	require.Len(t, tpls, 2)

	assert.Equal(t, "amazon", tpls[0].ID)
	assert.Equal(t, "Amazon Order", tpls[0].Name)
	assert.Equal(t, "Amazon", tpls[0].Vendor)
	assert.True(t, tpls[0].Active())
	require.Len(t, tpls[0].Data.Fields, 2)
	assert.Equal(t, model.DataTypeCurrency, tpls[0].Data.Fields[1].DataType)
	assert.True(t, tpls[0].Data.Fields[1].IsRequired())

	assert.False(t, tpls[1].Active())
	mc.AssertExpectations(t)
}

func TestLoadTemplates_ActiveOnlyFilter(t *testing.T) {
	mc := new(mockTemplateDB)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "t-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == PropActive && pf.Checkbox != nil && pf.Checkbox.Equals
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{makeTemplatePage("p1", "amazon", "Amazon Order", "Amazon", amazonData, true)},
	}, nil).Once()

	tpls, err := LoadTemplates(ctx, mc, "t-db", true)
	require.NoError(t, err)
	assert.Len(t, tpls, 1)
	mc.AssertExpectations(t)
}

func TestLoadTemplates_SkipsMalformed(t *testing.T) {
	mc := new(mockTemplateDB)
	ctx := context.Background()

	noID := makeTemplatePage("p3", "", "No ID", "Acme", amazonData, true)
	noData := makeTemplatePage("p4", "acme", "Acme", "Acme", amazonData, true)
	delete(noData.Properties, PropTemplateData)

	mc.On("QueryDatabase", ctx, "t-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeTemplatePage("p1", "amazon", "Amazon Order", "Amazon", amazonData, true),
				makeTemplatePage("p2", "broken", "Broken", "Acme", `{"identification": {}}`, true),
				noID,
				noData,
			},
		}, nil).Once()

	tpls, err := LoadTemplates(ctx, mc, "t-db", false)
	require.NoError(t, err)
	require.Len(t, tpls, 1)
	assert.Equal(t, "amazon", tpls[0].ID)
	mc.AssertExpectations(t)
}

func TestLoadTemplates_QueryError(t *testing.T) {
	mc := new(mockTemplateDB)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "t-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	tpls, err := LoadTemplates(ctx, mc, "t-db", false)
	assert.Error(t, err)
	assert.Nil(t, tpls)
	mc.AssertExpectations(t)
}

func TestPublishTemplates_CreatesAndUpdates(t *testing.T) {
	mc := new(mockTemplateDB)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "t-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{makeTemplatePage("page-amazon", "amazon", "Amazon Order", "Amazon", amazonData, true)},
		}, nil).Once()

	mc.On("UpdatePage", ctx, "page-amazon", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		cp, ok := req.Properties[PropActive].(notionapi.CheckboxProperty)
		return ok && !cp.Checkbox
	})).Return(&notionapi.Page{ID: "page-amazon"}, nil).Once()

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		rtp, ok := req.Properties[PropTemplateID].(notionapi.RichTextProperty)
		_, hasVendor := req.Properties[PropVendor]
		return ok && len(rtp.RichText) == 1 && rtp.RichText[0].Text.Content == "acme" &&
			!hasVendor && req.Parent.DatabaseID == "t-db"
	})).Return(&notionapi.Page{ID: "page-acme"}, nil).Once()

	inactive := false
	tpls := []model.Template{
		{ID: "amazon", Name: "Amazon Order", Vendor: "Amazon", IsActive: &inactive, Data: model.TemplateData{
			Identification: model.Identification{Markers: []model.Marker{{Text: "amazon.com", Required: true}}},
			Fields:         []model.Field{},
		}},
		{ID: "acme", Name: "Acme", Data: model.TemplateData{
			Identification: model.Identification{Markers: []model.Marker{{Text: "Acme", Required: true}}},
			Fields:         []model.Field{},
		}},
	}

	rep, err := PublishTemplates(ctx, mc, "t-db", tpls)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, 1, rep.Updated)
	mc.AssertExpectations(t)
}

func TestPublishTemplates_RoundTrip(t *testing.T) {
	tpl := model.Template{ID: "amazon", Name: "Amazon Order", Vendor: "Amazon", Version: "2.0"}
	tpl.Data.Identification.Markers = []model.Marker{{Text: "amazon.com", Required: true}}
	tpl.Data.Fields = []model.Field{{
		FieldName:  "total",
		DataType:   model.DataTypeCurrency,
		Extraction: model.Extraction{Regex: `Total (\S+)`},
	}}

	props, err := templateProperties(&tpl)
	require.NoError(t, err)

	// Convert the written value properties into the pointer form the API returns.
	page := notionapi.Page{ID: "p1", Properties: notionapi.Properties{}}
	for k, v := range props {
		switch p := v.(type) {
		case notionapi.TitleProperty:
			page.Properties[k] = &p
		case notionapi.RichTextProperty:
			page.Properties[k] = &p
		case notionapi.SelectProperty:
			page.Properties[k] = &p
		case notionapi.CheckboxProperty:
			page.Properties[k] = &p
		}
	}

	got, err := parseTemplatePage(page)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, got.ID)
	assert.Equal(t, tpl.Name, got.Name)
	assert.Equal(t, tpl.Vendor, got.Vendor)
	assert.Equal(t, tpl.Version, got.Version)
	assert.True(t, got.Active())
	assert.Equal(t, tpl.Data, got.Data)
}

func TestLoadTemplatesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")
	bundle := `[
  {"template_id": "amazon", "name": "Amazon Order", "template_data": ` + amazonData + `},
  {"template_id": "acme", "template_data": ` + amazonData + `}
]`
	require.NoError(t, os.WriteFile(path, []byte(bundle), 0o644))

	tpls, err := LoadTemplatesFromFile(path)
	require.NoError(t, err)
	require.Len(t, tpls, 2)
	assert.Equal(t, "amazon", tpls[0].ID)
	assert.Equal(t, "acme", tpls[1].Name)
}

func TestLoadTemplatesFromFile_Rejects(t *testing.T) {
	cases := map[string]string{
		"not an array": `{"template_id": "amazon"}`,
		"missing id":   `[{"template_data": ` + amazonData + `}]`,
		"duplicate":    `[{"template_id": "a", "template_data": ` + amazonData + `}, {"template_id": "a", "template_data": ` + amazonData + `}]`,
		"bad entry":    `[{"template_id": "a", "template_data": {"fields": []}}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bundle.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadTemplatesFromFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplatesFromFile_Missing(t *testing.T) {
	_, err := LoadTemplatesFromFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read template bundle")
}
