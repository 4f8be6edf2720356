package pipeline

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/entrega-cli/internal/llm"
)

// --- Completer Mock ---

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

// promptWith matches prompts containing every fragment.
func promptWith(fragments ...string) any {
	return mock.MatchedBy(func(p string) bool {
		for _, f := range fragments {
			if !strings.Contains(p, f) {
				return false
			}
		}
		return true
	})
}

// Fragments that tell the prompts of each phase apart.
const (
	extractionMarker    = "Analiza el siguiente proyecto"
	consolidationMarker = "análisis consolidado de los"
	executiveMarker     = "reportes ejecutivos"
	comparativeMarker   = "contrastar las notas"
)
