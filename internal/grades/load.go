package grades

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entrega-cli/internal/docstore"
)

// Load reads a grades export (.csv or .xlsx) through store and parses it.
// A missing file is returned as a *docstore.NotFoundError.
func (p *Parser) Load(ctx context.Context, store docstore.Store, path string) (*GradeTable, error) {
	rows, err := store.ReadRows(ctx, path)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "grades: load %s", path)
	}
	return p.Parse(rows), nil
}
