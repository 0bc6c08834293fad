// Package prompt loads and renders the session's prompt templates.
//
// Templates are plain text with literal placeholder tokens of the form
// <<NAME>>; substitution is straight find-and-replace, not a templating
// language. Defaults are embedded in the binary and can be overridden
// per-template by files in a directory, with optional hot reload.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Template names understood by the session.
const (
	// Response is the grounded answer template: recent conversation,
	// notes, and related-message slots.
	Response = "response"

	// ResponseCold is the cold-start answer template: only the recent
	// conversation slot, used while little related context exists.
	ResponseCold = "response_cold"

	// Notes distills a conversation block into dash-bulleted notes.
	Notes = "notes"

	// CompressNotes rewrites an overgrown note set into a smaller one.
	CompressNotes = "compress_notes"
)

//go:embed templates/*.txt
var defaults embed.FS

// Loader resolves template names to template text. Files named
// <name>.txt in the override directory shadow the embedded defaults.
type Loader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

// NewLoader creates a loader. dir may be empty to serve only the
// embedded defaults.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// Load returns the template text for name.
func (l *Loader) Load(name string) (string, error) {
	l.mu.RLock()
	cached, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	text, err := l.read(name)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	l.cache[name] = text
	l.mu.Unlock()
	return text, nil
}

func (l *Loader) read(name string) (string, error) {
	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, name+".txt"))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
	}

	data, err := defaults.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown template %q", name)
	}
	return string(data), nil
}

// invalidate drops a cached template so the next Load re-reads it.
func (l *Loader) invalidate(name string) {
	l.mu.Lock()
	delete(l.cache, name)
	l.mu.Unlock()
}

// Render substitutes each vars key K into the literal token <<K>>.
// Unknown tokens are left in place.
func Render(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "<<"+k+">>", v)
	}
	return tmpl
}
