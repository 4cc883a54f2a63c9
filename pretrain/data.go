// Package pretrain holds the record type emitted for pretraining corpora and
// a JSON-lines sink for writing it.
package pretrain

// DomainSuffix is appended to reader names in the pretrain domain.
const DomainSuffix = "pt"

// Meta keys set by readers.
const (
	MetaFile  = "file"
	MetaStart = "start"
	MetaEnd   = "end"
)

// Data is one unit of pretraining text with its metadata.
type Data struct {
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// File returns the meta "file" value, or "" when absent.
func (d Data) File() string {
	s, _ := d.Meta[MetaFile].(string)
	return s
}
