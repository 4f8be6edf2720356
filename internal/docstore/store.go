// Package docstore reads and writes the documents a run consumes and
// produces: markdown inputs, tabular grade exports, JSON and CSV outputs.
package docstore

import "context"

// Store is the filesystem-like collaborator the analysis pipeline reads its
// inputs from and writes its outputs to.
type Store interface {
	// ReadText returns the decoded text of a document.
	ReadText(ctx context.Context, path string) (string, error)
	// WriteText writes content, creating parent directories as needed.
	WriteText(ctx context.Context, path, content string) error
	// ReadRows returns the cell grid of a .csv or .xlsx document.
	ReadRows(ctx context.Context, path string) ([][]string, error)
	// ReadJSON decodes a JSON document into v.
	ReadJSON(ctx context.Context, path string, v any) error
	// WriteJSON writes v as indented JSON.
	WriteJSON(ctx context.Context, path string, v any) error
	// List returns the paths in dir with the given extension, sorted.
	List(ctx context.Context, dir, ext string) ([]string, error)
}
