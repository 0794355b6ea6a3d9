package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/fluxshell/notifd/internal/history"
)

// jsonFormatter writes entries as an indented JSON array.
type jsonFormatter struct{}

func (f *jsonFormatter) Format(w io.Writer, entries []history.Entry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

// yamlFormatter writes entries as a YAML document.
type yamlFormatter struct{}

func (f *yamlFormatter) Format(w io.Writer, entries []history.Entry) error {
	encoder := yaml.NewEncoder(w)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(entries)
}
