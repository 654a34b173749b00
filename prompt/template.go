package prompt

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

var (
	templatesMu sync.RWMutex
	templates   = make(map[string]*template.Template)
)

// RegisterTemplate compiles text and registers it under name for later use
// by Runner.Rendering. A re-registration under the same name replaces the
// prior template.
func RegisterTemplate(name, text string) error {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("prompt: parse template %q: %w", name, err)
	}
	templatesMu.Lock()
	defer templatesMu.Unlock()
	templates[name] = tmpl
	return nil
}

func renderTemplate(name string, data any) (string, error) {
	templatesMu.RLock()
	tmpl, ok := templates[name]
	templatesMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("prompt: no template registered under %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt: render template %q: %w", name, err)
	}
	return buf.String(), nil
}
