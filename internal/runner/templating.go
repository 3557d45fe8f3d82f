package runner

import (
	"bytes"
	"math/rand"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

// TemplateEngine renders request paths such as
// "/public/crocodiles/{{randomInt 1 11}}/".
type TemplateEngine struct {
	funcMap template.FuncMap
}

// TemplateData is passed to the execution context
type TemplateData struct {
	VU        int
	Iteration int64
	RequestID string
}

// NewTemplateEngine initializes the engine and its functions
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{}

	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"uuid":         e.randomUUID, // Alias
	}

	return e
}

// Preprocess converts simple variables {{vu}} to Go template syntax {{.VU}}
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{vu}}", "{{.VU}}")
	s = strings.ReplaceAll(s, "{{iteration}}", "{{.Iteration}}")
	s = strings.ReplaceAll(s, "{{requestID}}", "{{.RequestID}}")
	return s
}

// Parse creates a new template with the engine's functions
func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	readyText := e.Preprocess(text)
	return template.New(name).Funcs(e.funcMap).Option("missingkey=error").Parse(readyText)
}

// Execute runs the template with data
func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// --- Functions ---

// randomInt returns a value in [min, max).
func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *TemplateEngine) randomUUID() string {
	return uuid.New().String()
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}
