package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches all pages from a Notion database, following cursors
// until the last page. Filter, sorts and page size from query are sent with
// every request. A cursor that repeats aborts the walk.
func QueryAll(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "notion: query all")
	}

	var all []notionapi.Page
	seen := make(map[notionapi.Cursor]bool)
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if query != nil {
			req.Filter = query.Filter
			req.Sorts = query.Sorts
			req.PageSize = query.PageSize
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrapf(err, "notion: query all page %d", len(seen)+1)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		if seen[resp.NextCursor] {
			return nil, eris.Errorf("notion: cursor %s repeated", resp.NextCursor)
		}
		seen[resp.NextCursor] = true
		cursor = resp.NextCursor
	}
}

// QueryChecked fetches all pages whose checkbox property equals value.
func QueryChecked(ctx context.Context, c Client, dbID, property string, value bool) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			Checkbox: &notionapi.CheckboxFilterCondition{
				Equals:       value,
				DoesNotEqual: !value,
			},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query %s pages", property)
	}
	return pages, nil
}
