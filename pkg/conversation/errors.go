package conversation

import "github.com/pkg/errors"

// Structural errors returned by tree operations. They are plain typed values
// so callers can match with errors.Is and present a precise message, and they
// are guaranteed to leave the conversation unchanged.
var (
	ErrNodeNotFound = errors.New("node not found")

	ErrIndexOutOfRange = errors.New("variant index out of range")

	// ErrCannotDeleteBranchPoint is returned when deleting a message whose
	// node holds more than one variant. Deleting one of several sibling
	// variants would silently destroy alternate history, the caller has to
	// pick a variant first.
	ErrCannotDeleteBranchPoint = errors.New("cannot delete a branch point")
)
