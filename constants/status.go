package constants

// DocStatus is the per-file outcome of text extraction.
type DocStatus string

const (
	DocStatusOK             DocStatus = "OK"
	DocStatusPartialFailure DocStatus = "PARTIAL_FAILURE" // parsers ran but produced no text
	DocStatusFailed         DocStatus = "FAILED"          // skipped, not fatal to the batch
)

const (
	// MissingAmount is the literal the model emits when it saw a field without a value.
	MissingAmount = "MISSING"
	// PlaceholderAmount fills the Montant column when no model is configured.
	PlaceholderAmount = "to be extracted"
)
