package pager

import "errors"

var (
	// ErrInvalidPage reports a page number out of range for the file, or a
	// malformed page buffer passed to WritePage.
	ErrInvalidPage = errors.New("pager: invalid page")

	// ErrCorrupt reports a pager file whose length is not an exact multiple
	// of PageSize.
	ErrCorrupt = errors.New("pager: corrupt file")

	// ErrKeyTooLarge reports a key whose serialized cell would not fit on
	// an empty page.
	ErrKeyTooLarge = errors.New("tree: key too large for a page")

	// ErrKeyExists reports an insert of a key that is already present.
	ErrKeyExists = errors.New("tree: key already exists")

	// ErrKeyNotFound reports an update of a key that is not present.
	ErrKeyNotFound = errors.New("tree: key not found")
)
