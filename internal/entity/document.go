package entity

import (
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
)

// SourceFile is one uploaded unit. Filename carries the only format signal.
// Archive is set for archive members: the chain of enclosing archives,
// outermost first, joined by "/".
type SourceFile struct {
	Filename string `json:"filename"`
	Archive  string `json:"archive,omitempty"`
	Content  []byte `json:"-"`
}

// ExtractedDocument is the dispatcher's verdict on one SourceFile.
// For archive members Filename is the member path inside the archive and
// Archive names the archive it came from.
type ExtractedDocument struct {
	Filename string              `json:"filename"`
	Archive  string              `json:"archive,omitempty"`
	Format   constants.Format    `json:"format,omitempty"`
	Text     string              `json:"text"`
	Status   constants.DocStatus `json:"status"`
	Method   string              `json:"method,omitempty"`
	Reason   string              `json:"reason,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Normalize enforces that a document with no text is never OK.
func (d *ExtractedDocument) Normalize() {
	if d.Text == "" && d.Status == constants.DocStatusOK {
		d.Status = constants.DocStatusPartialFailure
		if d.Reason == "" {
			d.Reason = "no text extracted"
		}
	}
}

// Origin is Filename qualified by its archive, for messages and labels.
func (d ExtractedDocument) Origin() string {
	if d.Archive == "" {
		return d.Filename
	}
	return d.Archive + "/" + d.Filename
}

func (d ExtractedDocument) Failed() bool { return d.Status == constants.DocStatusFailed }

// TextChunk is a window over a document's text. Index is 0-based and contiguous per source.
type TextChunk struct {
	SourceFilename string `json:"source_filename"`
	Index          int    `json:"index"`
	Text           string `json:"text"`
}
