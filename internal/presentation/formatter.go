package presentation

import (
	"encoding/json"
	"io"
)

// Formatter renders DTOs as indented JSON on a writer.
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a formatter writing to writer.
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer}
}

// FormatTable renders the dispatch table state.
func (f *Formatter) FormatTable(table TableDTO) error {
	return f.encode(table)
}

// FormatHistory renders journal entries.
func (f *Formatter) FormatHistory(entries []HistoryEntryDTO) error {
	return f.encode(entries)
}

// FormatResult renders an arbitrary result.
func (f *Formatter) FormatResult(result any) error {
	return f.encode(result)
}

func (f *Formatter) encode(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
