// Package errors defines the sentinel errors shared across the indexing
// front-end. Callers wrap them with fmt.Errorf("...: %w", ...) and test with
// errors.Is.
package errors

import "errors"

var (
	// ErrSchemaNotFound is returned when no schema exists for an index.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrAnalyzer is returned when a field analyzer fails or is unknown.
	ErrAnalyzer = errors.New("analyzer error")

	// ErrMissingIdentity is returned when a wire document has no id or
	// index name.
	ErrMissingIdentity = errors.New("document missing id or index")

	// ErrMalformedWireFormat is returned when the top-level wire shape is
	// not a JSON object.
	ErrMalformedWireFormat = errors.New("malformed wire document")

	// ErrStoreOpen is returned when a partition's local index store cannot
	// be opened.
	ErrStoreOpen = errors.New("index store open failed")

	// ErrUnsupportedOperation is returned by the partition router for
	// command kinds it does not handle.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNotSupported is returned for operations the postings-organized
	// store cannot serve (key listing, bucket listing, key deletion).
	ErrNotSupported = errors.New("not supported")

	// ErrNotFound is returned by point lookups and document fetches that
	// find nothing.
	ErrNotFound = errors.New("not found")

	// ErrRouterStopped is returned when a command is dispatched to a
	// partition router that has been stopped.
	ErrRouterStopped = errors.New("partition router stopped")
)
