// Package enrich joins per-project extraction records with grade data and
// flags projects whose grade disagrees with their extracted assessment.
package enrich

import (
	"bytes"
	"encoding/json"
	"maps"

	"github.com/rotisserie/eris"
)

// JSON keys of the extraction record fields read by this module.
const (
	keyMetadata    = "metadata"
	keyTechnical   = "decisiones_tecnicas"
	keyBusiness    = "decisiones_negocio"
	keyRisks       = "riesgos_identificados"
	keyStrengths   = "fortalezas_generales"
	keyWeaknesses  = "debilidades_generales"
	keyObservation = "observaciones"
	keyInternal    = "_metadata"
	keyGrade       = "calificacion"
)

// ProjectMetadata describes the project itself, as extracted by the model.
type ProjectMetadata struct {
	NombreProyecto       string `json:"nombre_proyecto"`
	Dominio              string `json:"dominio"`
	ProblemaIdentificado string `json:"problema_identificado"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m *ProjectMetadata) UnmarshalJSON(data []byte) error {
	type plain ProjectMetadata
	*m = ProjectMetadata{}
	extra, err := decodeObject(data, (*plain)(m))
	m.Extra = extra
	return err
}

func (m ProjectMetadata) MarshalJSON() ([]byte, error) {
	type plain ProjectMetadata
	return encodeObject(plain(m), m.Extra)
}

// TechnicalDecisions are the technical choices a project made.
type TechnicalDecisions struct {
	Arquitectura  string   `json:"arquitectura"`
	ModelosLLM    []string `json:"modelos_llm"`
	Tecnologias   []string `json:"tecnologias"`
	Integraciones []string `json:"integraciones"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (d *TechnicalDecisions) UnmarshalJSON(data []byte) error {
	type plain TechnicalDecisions
	*d = TechnicalDecisions{}
	extra, err := decodeObject(data, (*plain)(d))
	d.Extra = extra
	return err
}

func (d TechnicalDecisions) MarshalJSON() ([]byte, error) {
	type plain TechnicalDecisions
	return encodeObject(plain(d), d.Extra)
}

// BusinessDecisions are the product and business choices a project made.
type BusinessDecisions struct {
	UsuariosObjetivo []string `json:"usuarios_objetivo"`
	MetricasExito    []string `json:"metricas_exito"`
	AlcanceMVP       string   `json:"alcance_mvp"`
	Escalabilidad    string   `json:"escalabilidad"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (d *BusinessDecisions) UnmarshalJSON(data []byte) error {
	type plain BusinessDecisions
	*d = BusinessDecisions{}
	extra, err := decodeObject(data, (*plain)(d))
	d.Extra = extra
	return err
}

func (d BusinessDecisions) MarshalJSON() ([]byte, error) {
	type plain BusinessDecisions
	return encodeObject(plain(d), d.Extra)
}

// Risk is one risk a project identified, with its mitigation.
type Risk struct {
	Riesgo     string `json:"riesgo"`
	Mitigacion string `json:"mitigacion"`
	Categoria  string `json:"categoria"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (k *Risk) UnmarshalJSON(data []byte) error {
	type plain Risk
	*k = Risk{}
	extra, err := decodeObject(data, (*plain)(k))
	k.Extra = extra
	return err
}

func (k Risk) MarshalJSON() ([]byte, error) {
	type plain Risk
	return encodeObject(plain(k), k.Extra)
}

// ExtractionMetadata is attached by the extraction phase, not the model.
type ExtractionMetadata struct {
	ProyectoID      string `json:"proyecto_id"`
	ArchivoFuente   string `json:"archivo_fuente"`
	ModeloUsado     string `json:"modelo_usado"`
	TokensEstimados int    `json:"tokens_estimados"`
}

// GradeSummary is the grade block attached to an enriched record.
type GradeSummary struct {
	GroupID         string             `json:"grupo_id"`
	Tutor           string             `json:"tutor"`
	TotalPoints     float64            `json:"puntos_totales"`
	PossiblePoints  float64            `json:"puntos_posibles"`
	Percent         float64            `json:"porcentaje"`
	CriterionScores map[string]float64 `json:"calificaciones_por_criterio"`
	Comments        map[string]string  `json:"comentarios"`
	GeneralFeedback string             `json:"retroalimentacion_general"`
}

// ExtractionRecord is the structured summary the extraction step produces
// for one project. Known fields are typed; everything else the model
// returned is kept verbatim in Extra so it survives a round trip, at the top
// level and inside the nested objects. A known key whose value does not fit
// its type is kept in Extra as well.
type ExtractionRecord struct {
	Metadata             *ProjectMetadata
	DecisionesTecnicas   *TechnicalDecisions
	DecisionesNegocio    *BusinessDecisions
	RiesgosIdentificados []Risk
	FortalezasGenerales  []string
	DebilidadesGenerales []string
	Observaciones        string
	Internal             *ExtractionMetadata

	// Calificacion is set by Enrich. It is nil for unmatched projects; the
	// key is written as null once the record has been through Enrich.
	Calificacion *GradeSummary

	Extra map[string]json.RawMessage

	enriched       bool
	hasObservation bool
}

// ProjectID returns the id the extraction phase assigned, or "".
func (r *ExtractionRecord) ProjectID() string {
	if r.Internal == nil {
		return ""
	}
	return r.Internal.ProyectoID
}

// Domain returns the extracted application domain, or "".
func (r *ExtractionRecord) Domain() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.Dominio
}

// StrengthCount returns the number of entries under fortalezas_generales,
// whatever their shape.
func (r *ExtractionRecord) StrengthCount() int {
	return r.listLen(keyStrengths, r.FortalezasGenerales)
}

// WeaknessCount returns the number of entries under debilidades_generales,
// whatever their shape.
func (r *ExtractionRecord) WeaknessCount() int {
	return r.listLen(keyWeaknesses, r.DebilidadesGenerales)
}

// listLen counts the typed list, or the raw array kept in Extra when the
// entries were not strings. Anything other than an array counts as 0.
func (r *ExtractionRecord) listLen(key string, typed []string) int {
	if typed != nil {
		return len(typed)
	}
	raw, ok := r.Extra[key]
	if !ok {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

// IsEnriched reports whether the record has been through Enrich.
func (r *ExtractionRecord) IsEnriched() bool {
	return r.enriched
}

// UnmarshalJSON decodes known keys into typed fields and keeps the rest.
func (r *ExtractionRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "enrich: decode extraction record")
	}

	*r = ExtractionRecord{}
	decoders := map[string]func(json.RawMessage) error{
		keyMetadata:    decodeInto(&r.Metadata),
		keyTechnical:   decodeInto(&r.DecisionesTecnicas),
		keyBusiness:    decodeInto(&r.DecisionesNegocio),
		keyRisks:       decodeInto(&r.RiesgosIdentificados),
		keyStrengths:   decodeInto(&r.FortalezasGenerales),
		keyWeaknesses:  decodeInto(&r.DebilidadesGenerales),
		keyObservation: decodeInto(&r.Observaciones),
		keyInternal:    decodeInto(&r.Internal),
		keyGrade:       decodeInto(&r.Calificacion),
	}

	for key, value := range raw {
		decode, known := decoders[key]
		if known && key != keyGrade && isNull(value) {
			known = false
		}
		if known && decode(value) == nil {
			switch key {
			case keyGrade:
				r.enriched = true
			case keyObservation:
				r.hasObservation = true
			}
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[key] = value
	}
	return nil
}

// MarshalJSON writes the typed fields over the Extra bag. Empty known
// fields are omitted unless they came in through Extra.
func (r ExtractionRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+9)
	for k, v := range r.Extra {
		out[k] = v
	}

	if r.Metadata != nil {
		out[keyMetadata] = r.Metadata
	}
	if r.DecisionesTecnicas != nil {
		out[keyTechnical] = r.DecisionesTecnicas
	}
	if r.DecisionesNegocio != nil {
		out[keyBusiness] = r.DecisionesNegocio
	}
	if r.RiesgosIdentificados != nil {
		out[keyRisks] = r.RiesgosIdentificados
	}
	if r.FortalezasGenerales != nil {
		out[keyStrengths] = r.FortalezasGenerales
	}
	if r.DebilidadesGenerales != nil {
		out[keyWeaknesses] = r.DebilidadesGenerales
	}
	if r.Observaciones != "" || r.hasObservation {
		out[keyObservation] = r.Observaciones
	}
	if r.Internal != nil {
		out[keyInternal] = r.Internal
	}
	if r.enriched || r.Calificacion != nil {
		out[keyGrade] = r.Calificacion
	}

	b, err := encodeJSON(out)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: encode extraction record")
	}
	return b, nil
}

// Clone returns a copy that shares no mutable state with r.
func (r *ExtractionRecord) Clone() ExtractionRecord {
	c := *r
	if r.Metadata != nil {
		m := *r.Metadata
		m.Extra = cloneRaw(m.Extra)
		c.Metadata = &m
	}
	if r.DecisionesTecnicas != nil {
		d := *r.DecisionesTecnicas
		d.ModelosLLM = cloneStrings(d.ModelosLLM)
		d.Tecnologias = cloneStrings(d.Tecnologias)
		d.Integraciones = cloneStrings(d.Integraciones)
		d.Extra = cloneRaw(d.Extra)
		c.DecisionesTecnicas = &d
	}
	if r.DecisionesNegocio != nil {
		d := *r.DecisionesNegocio
		d.UsuariosObjetivo = cloneStrings(d.UsuariosObjetivo)
		d.MetricasExito = cloneStrings(d.MetricasExito)
		d.Extra = cloneRaw(d.Extra)
		c.DecisionesNegocio = &d
	}
	if r.RiesgosIdentificados != nil {
		c.RiesgosIdentificados = make([]Risk, len(r.RiesgosIdentificados))
		for i, k := range r.RiesgosIdentificados {
			k.Extra = cloneRaw(k.Extra)
			c.RiesgosIdentificados[i] = k
		}
	}
	c.FortalezasGenerales = cloneStrings(r.FortalezasGenerales)
	c.DebilidadesGenerales = cloneStrings(r.DebilidadesGenerales)
	if r.Internal != nil {
		m := *r.Internal
		c.Internal = &m
	}
	if r.Calificacion != nil {
		g := *r.Calificacion
		g.CriterionScores = maps.Clone(g.CriterionScores)
		g.Comments = maps.Clone(g.Comments)
		c.Calificacion = &g
	}
	c.Extra = cloneRaw(r.Extra)
	return c
}

// decodeInto returns a decoder that only assigns to dst when the whole
// value decodes.
func decodeInto[T any](dst *T) func(json.RawMessage) error {
	return func(raw json.RawMessage) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// decodeObject decodes data into dst and returns the members of the object
// that dst has no field for, or nil when there are none.
func decodeObject[T any](data []byte, dst *T) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var zero T
	b, err := json.Marshal(zero)
	if err != nil {
		return nil, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(b, &known); err != nil {
		return nil, err
	}

	var extra map[string]json.RawMessage
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

// encodeObject encodes v with the members of extra that v does not set.
func encodeObject[T any](v T, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return encodeJSON(v)
	}
	b, err := encodeJSON(v)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := out[k]; !ok {
			out[k] = raw
		}
	}
	return encodeJSON(out)
}

// encodeJSON marshals v without HTML escaping.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	c := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		c[k] = append(json.RawMessage(nil), v...)
	}
	return c
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
