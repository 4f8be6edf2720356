// Package prompt builds the Spanish prompts sent to the model in each
// analysis phase. The assignment statement and rubric travel in the system
// prompt so providers that support it can cache them across projects.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entrega-cli/internal/enrich"
	"github.com/sells-group/entrega-cli/internal/grades"
)

const contextTemplate = `Eres un asistente experto en analizar proyectos estudiantiles de aplicaciones LLM (Large Language Models).

# CONTEXTO DE LA ACTIVIDAD

## Enunciado de la Actividad
%s

## Rúbrica de Evaluación
%s`

const extractionTemplate = `# TU TAREA

Analiza el siguiente proyecto estudiantil y extrae información estructurada en formato JSON.

## Proyecto a Analizar
%s

# FORMATO DE SALIDA

Genera un JSON con esta estructura:

{
  "metadata": {
    "nombre_proyecto": "título o nombre del proyecto",
    "dominio": "área de aplicación (jurídico, corporativo, salud, educación, ...)",
    "problema_identificado": "resumen conciso del problema que buscan resolver"
  },
  "cumplimiento_enunciado": [
    {
      "seccion_enunciado": "qué pedía el enunciado",
      "como_lo_abordaron": "cómo respondió el equipo",
      "decisiones_clave": ["decisiones concretas"],
      "calidad": "alta | media | baja"
    }
  ],
  "evaluacion_rubrica": [
    {
      "criterio": "criterio de la rúbrica",
      "evidencia_encontrada": "evidencia en el documento",
      "fortalezas": ["aspectos bien ejecutados"],
      "debilidades": ["aspectos débiles o faltantes"],
      "cumplimiento_estimado": "excelente | bueno | regular | insuficiente"
    }
  ],
  "decisiones_tecnicas": {
    "arquitectura": "RAG, fine-tuning, agentes, ...",
    "modelos_llm": ["modelos mencionados"],
    "tecnologias": ["tecnologías y herramientas"],
    "integraciones": ["sistemas externos o fuentes de datos"]
  },
  "decisiones_negocio": {
    "usuarios_objetivo": ["perfiles de usuario"],
    "metricas_exito": ["métricas propuestas"],
    "alcance_mvp": "alcance inicial",
    "escalabilidad": "consideraciones de escalabilidad"
  },
  "riesgos_identificados": [
    {
      "riesgo": "descripción del riesgo",
      "mitigacion": "estrategia de mitigación",
      "categoria": "técnico | negocio | ético | regulatorio"
    }
  ],
  "fortalezas_generales": ["fortalezas destacables"],
  "debilidades_generales": ["debilidades o carencias"],
  "observaciones": "observaciones adicionales"
}

# REGLAS

1. Si una información no aparece en el documento, usa null o listas vacías.
2. Extrae solo decisiones explícitas del documento; no inventes información.
3. Justifica la evaluación de cada criterio con evidencia concreta.
4. Responde ÚNICAMENTE con el JSON, sin texto antes ni después.`

const consolidationTemplate = `# TU TAREA

Realiza un análisis consolidado de los %d proyectos siguientes e identifica patrones, tendencias e insights accionables para el equipo docente.

## Extracciones de los Proyectos
%s

# FORMATO DE SALIDA

Genera un JSON con esta estructura:

{
  "resumen_ejecutivo": {
    "total_proyectos": %d,
    "dominios_identificados": {"<dominio>": <cantidad>},
    "patron_general": "patrones observados a alto nivel"
  },
  "decisiones_comunes": [
    {"decision": "...", "frecuencia": 0, "porcentaje": 0, "categoria": "técnica | negocio | diseño | riesgos", "ejemplos": ["proyectos"]}
  ],
  "tecnologias_mas_usadas": [
    {"tecnologia": "...", "frecuencia": 0, "porcentaje": 0, "contexto_uso": "..."}
  ],
  "patrones_por_dominio": [
    {"dominio": "...", "cantidad_proyectos": 0, "caracteristicas_comunes": [], "decisiones_tipicas": []}
  ],
  "evaluacion_rubrica_agregada": [
    {"criterio": "...", "proyectos_excelentes": 0, "proyectos_buenos": 0, "proyectos_regulares": 0, "proyectos_insuficientes": 0, "fortaleza_recurrente": "...", "debilidad_recurrente": "...", "recomendacion": "..."}
  ],
  "gaps_frecuentes": [
    {"gap": "...", "frecuencia": 0, "gravedad": "alta | media | baja", "impacto_rubrica": "...", "sugerencia_mejora": "..."}
  ],
  "mejores_practicas_identificadas": [
    {"practica": "...", "proyectos_ejemplo": [], "por_que_destacable": "..."}
  ],
  "riesgos_mas_identificados": [
    {"riesgo": "...", "frecuencia": 0, "enfoques_mitigacion": []}
  ],
  "insights_clave": ["..."],
  "recomendaciones_generales": ["..."]
}

# REGLAS

1. Incluye siempre frecuencias y porcentajes.
2. Relaciona cada gap frecuente con un criterio de la rúbrica.
3. Las recomendaciones deben ser concretas.
4. Responde ÚNICAMENTE con el JSON, sin texto adicional.`

const summaryReportTemplate = `Eres un asistente que redacta reportes ejecutivos claros y accionables para docentes.

# DATOS DEL ANÁLISIS CONSOLIDADO
%s

# TU TAREA

Redacta en Markdown un reporte ejecutivo de la entrega %d con estas secciones:

# Reporte de Análisis - Entrega %d
## Resumen Ejecutivo
## Cumplimiento de Objetivos
## Decisiones y Patrones Comunes
### Decisiones Técnicas Más Frecuentes
### Decisiones de Negocio Más Frecuentes
### Patrones por Dominio
## Áreas de Oportunidad
### Gaps Frecuentes
### Errores Conceptuales Recurrentes
## Mejores Prácticas Identificadas
## Análisis por Criterio de Rúbrica
## Insights Clave
## Recomendaciones para Próxima Entrega

# REGLAS

1. No uses emojis.
2. Usa tablas Markdown donde ayuden y negritas para las cifras clave.
3. Tono profesional y cercano; prioriza lo accionable.
4. Responde solo con el Markdown, sin comentarios sobre el propio reporte.`

const gradesAnalysisTemplate = `Eres un asistente que ayuda a docentes a contrastar las notas de una entrega con el análisis cualitativo de los proyectos.

# DATOS

## Estadísticas de Calificaciones
%s

## Correlación entre Notas y Análisis
%s

## Proyectos de Ejemplo (mejores y peores notas)
%s

# TU TAREA

Redacta en Markdown un reporte comparativo con estas secciones:

# Reporte Comparativo: Calificaciones vs Análisis
## Resumen
## Relación entre Nota y Calidad Percibida
## Discrepancias Relevantes
## Patrones en los Comentarios de Tutores
## Recomendaciones para la Evaluación

# REGLAS

1. Cita grupos concretos cuando describas una discrepancia.
2. Distingue entre problemas del proyecto y posibles inconsistencias de la evaluación.
3. No uses emojis.
4. Responde solo con el Markdown.`

// Context returns the system prompt shared by every call of a run: the
// assignment statement and its rubric.
func Context(enunciado, rubrica string) string {
	return fmt.Sprintf(contextTemplate, enunciado, rubrica)
}

// Extraction returns the phase 1 prompt for one project document.
func Extraction(project string) string {
	return fmt.Sprintf(extractionTemplate, project)
}

// Consolidation returns the phase 2 prompt over every extracted record.
func Consolidation(records []enrich.ExtractionRecord) (string, error) {
	data, err := toJSON(records)
	if err != nil {
		return "", eris.Wrap(err, "prompt: encode extractions")
	}
	return fmt.Sprintf(consolidationTemplate, len(records), data, len(records)), nil
}

// SummaryReport returns the prompt that turns the consolidated analysis into
// the executive markdown report.
func SummaryReport(consolidated map[string]any, entrega int) (string, error) {
	data, err := toJSON(consolidated)
	if err != nil {
		return "", eris.Wrap(err, "prompt: encode consolidated analysis")
	}
	return fmt.Sprintf(summaryReportTemplate, data, entrega, entrega), nil
}

// GradesInput is the data behind the comparative grades report.
type GradesInput struct {
	Stats    grades.Stats
	Analysis enrich.Analysis
	Samples  []enrich.Sample
}

// GradesAnalysis returns the prompt for the comparative report between the
// grade table and the extraction analysis.
func GradesAnalysis(in GradesInput) (string, error) {
	stats, err := toJSON(in.Stats)
	if err != nil {
		return "", eris.Wrap(err, "prompt: encode grade statistics")
	}
	analysis, err := toJSON(in.Analysis)
	if err != nil {
		return "", eris.Wrap(err, "prompt: encode grade analysis")
	}
	samples := in.Samples
	if samples == nil {
		samples = []enrich.Sample{}
	}
	examples, err := toJSON(samples)
	if err != nil {
		return "", eris.Wrap(err, "prompt: encode samples")
	}
	return fmt.Sprintf(gradesAnalysisTemplate, stats, analysis, examples), nil
}

// toJSON indents v with two spaces and keeps non-ASCII and HTML characters
// as written.
func toJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
