package export

import (
	"fmt"
	"strings"
)

// Dataset is a titled table. Every row must have one cell per header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer turns a Dataset into a downloadable document.
type Renderer interface {
	ContentType() string
	Extension() string
	Render(data Dataset) ([]byte, error)
}

var renderers = map[string]Renderer{
	"csv": NewCSVExporter(),
	"pdf": NewPDFExporter(),
}

// ForFormat looks up a renderer by case-insensitive format name.
func ForFormat(format string) (Renderer, bool) {
	r, ok := renderers[strings.ToLower(strings.TrimSpace(format))]
	return r, ok
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}
