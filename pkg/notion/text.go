package notion

import (
	"github.com/jomei/notionapi"
)

// MaxTextContent is Notion's limit on the content of a single rich text
// object.
const MaxTextContent = 2000

// PlainText concatenates the plain text of a rich text array.
func PlainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		if rt.PlainText != "" {
			s += rt.PlainText
		} else if rt.Text != nil {
			s += rt.Text.Content
		}
	}
	return s
}

// RichText splits s into rich text objects no longer than MaxTextContent
// runes each.
func RichText(s string) []notionapi.RichText {
	r := []rune(s)
	if len(r) == 0 {
		return []notionapi.RichText{}
	}
	out := make([]notionapi.RichText, 0, len(r)/MaxTextContent+1)
	for start := 0; start < len(r); start += MaxTextContent {
		end := min(start+MaxTextContent, len(r))
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(r[start:end])},
		})
	}
	return out
}
