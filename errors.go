package docgraph

import "errors"

var (
	// ErrMissingInput is returned when a required argument (file, question,
	// triplets) is absent or empty.
	ErrMissingInput = errors.New("docgraph: missing input")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("docgraph: unsupported document format")

	// ErrParsingFailed is returned when a supported document cannot be read.
	ErrParsingFailed = errors.New("docgraph: parsing failed")

	// ErrDocumentTooLarge is returned when a document exceeds the upload
	// limit or the answering context budget.
	ErrDocumentTooLarge = errors.New("docgraph: document too large")

	// ErrLLMRequestFailed is returned when the generative backend fails:
	// an answering call, or every extraction call of a document.
	ErrLLMRequestFailed = errors.New("docgraph: LLM request failed")

	// ErrGraphWrite is returned when one or more triplets could not be
	// merged into the graph store.
	ErrGraphWrite = errors.New("docgraph: graph write failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docgraph: invalid configuration")
)
