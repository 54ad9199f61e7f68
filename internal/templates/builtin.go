package templates

import (
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/model"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtin returns the vendor templates shipped with the binary, ordered by
// file name. They give a fresh store something to classify against.
func Builtin() ([]model.Template, error) {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, eris.Wrap(err, "templates: read builtin dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	out := make([]model.Template, 0, len(entries))
	for _, e := range entries {
		b, err := builtinFS.ReadFile(path.Join("builtin", e.Name()))
		if err != nil {
			return nil, eris.Wrapf(err, "templates: read builtin %s", e.Name())
		}
		t, err := DecodeYAML(b)
		if err != nil {
			return nil, eris.Wrapf(err, "templates: decode builtin %s", e.Name())
		}
		out = append(out, *t)
	}
	return out, nil
}
