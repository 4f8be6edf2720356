package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "plain object",
			in:   `{"dominio": "salud", "n": 2}`,
			want: map[string]any{"dominio": "salud", "n": 2.0},
		},
		{
			name: "surrounding prose",
			in:   "Aquí está el análisis:\n{\"dominio\": \"educación\"}\nEspero que sirva.",
			want: map[string]any{"dominio": "educación"},
		},
		{
			name: "fenced block",
			in:   "```json\n{\"metadata\": {\"dominio\": \"legal\"}}\n```",
			want: map[string]any{"metadata": map[string]any{"dominio": "legal"}},
		},
		{
			name: "braces inside strings",
			in:   `Resultado: {"observaciones": "usa {plantillas} y }", "ok": true}`,
			want: map[string]any{"observaciones": "usa {plantillas} y }", "ok": true},
		},
		{
			name: "deep nesting",
			in:   `texto {"a": {"b": {"c": {"d": 1}}}} más texto`,
			want: map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": 1.0}}}},
		},
		{
			name: "first valid span wins",
			in:   `{no es json} y luego {"valido": 1}`,
			want: map[string]any{"valido": 1.0},
		},
		{
			name: "trailing comma repaired",
			in:   `{"fortalezas_generales": ["a", "b",],}`,
			want: map[string]any{"fortalezas_generales": []any{"a", "b"}},
		},
		{
			name: "truncated answer repaired",
			in:   `{"observaciones": "respuesta cortada`,
			want: map[string]any{"observaciones": "respuesta cortada"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	for _, in := range []string{"", "sin json aquí", "[1, 2, 3]"} {
		_, err := ExtractJSON(in)
		assert.ErrorIs(t, err, ErrNoJSON, in)
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Dominio string   `json:"dominio"`
		Lista   []string `json:"lista"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"dominio\": \"salud\", \"lista\": [\"x\"]}\n```", &out))
	assert.Equal(t, "salud", out.Dominio)
	assert.Equal(t, []string{"x"}, out.Lista)

	assert.ErrorIs(t, DecodeJSON("nada", &out), ErrNoJSON)
}

func TestBalancedObjects(t *testing.T) {
	spans := balancedObjects(`a {"x": "}"} b {"y": {"z": 1}} } c {`)
	assert.Equal(t, []string{`{"x": "}"}`, `{"y": {"z": 1}}`}, spans)
}
