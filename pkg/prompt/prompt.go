// Package prompt renders system prompt templates. Prompts in the settings
// file may be Go templates with the sprig function map, so a prompt can
// mention the current date or pull from the environment without code changes.
package prompt

import (
	"bytes"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

// Data is what a system prompt template is executed against.
type Data struct {
	// Now is the dispatch time of the request.
	Now time.Time
	// Date and Time are preformatted conveniences for the common case.
	Date string
	Time string

	Provider string
	Model    string

	// Extra carries caller supplied values under their own names.
	Extra map[string]interface{}
}

// NewData fills the time fields from now.
func NewData(now time.Time, provider string, model string) Data {
	return Data{
		Now:      now,
		Date:     now.Format("2006-01-02"),
		Time:     now.Format("15:04"),
		Provider: provider,
		Model:    model,
	}
}

// Render executes the prompt template with the sprig function map. A prompt
// without template actions passes through unchanged.
func Render(prompt string, data Data) (string, error) {
	tmpl, err := template.New("system-prompt").Funcs(sprig.FuncMap()).Parse(prompt)
	if err != nil {
		return "", errors.Wrap(err, "could not parse system prompt template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "could not render system prompt template")
	}
	return buf.String(), nil
}
