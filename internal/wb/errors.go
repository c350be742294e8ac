package wb

import "errors"

// Resolution failure taxonomy. Callers dispatch with errors.Is; everything else
// coming out of Resolve is a transport-level failure wrapped with context.
var (
	// ErrMetadataUnavailable means no content host served the product's card
	// document. Usually transient; safe to retry later.
	ErrMetadataUnavailable = errors.New("product card unavailable on all hosts")

	// ErrOutOfStock means the live inventory API reports zero total stock and
	// no card metadata could be found either.
	ErrOutOfStock = errors.New("product is out of stock")

	// ErrIncompleteMetadata means the card document was served but lacks the
	// structurally required name field.
	ErrIncompleteMetadata = errors.New("product card is missing required fields")

	// ErrProductRemoved means the live inventory API no longer lists the
	// product at all: the seller removed it. Terminal; callers should prune
	// the product instead of retrying.
	ErrProductRemoved = errors.New("product removed by seller")
)
