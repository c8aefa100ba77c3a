package engine

import (
	"errors"

	"github.com/dshills/blockdoc/internal/engine/chunk"
	"github.com/dshills/blockdoc/internal/engine/history"
)

// Errors returned by document operations. Position and history errors are
// aliased from their packages so callers can match either identity.
var (
	// ErrOutOfRange indicates a line position outside the document.
	ErrOutOfRange = chunk.ErrOutOfRange

	// ErrNothingToUndo indicates the history cursor is at the start.
	ErrNothingToUndo = history.ErrNothingToUndo

	// ErrNothingToRedo indicates the history cursor is at the end.
	ErrNothingToRedo = history.ErrNothingToRedo

	// ErrDocumentClosed indicates the document's session was closed.
	ErrDocumentClosed = errors.New("document closed")

	// ErrNoFilePath indicates a save on a document with no associated
	// file.
	ErrNoFilePath = errors.New("document has no file path")
)
