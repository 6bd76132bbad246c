package todo

import "errors"

// Shared error kinds crossing the store/engine/service boundaries.
var (
	// ErrListNotFound means the list exists in neither cache tier nor the store
	// (or its row is soft-deleted).
	ErrListNotFound = errors.New("list not found")
	// ErrItemNotFound means the target item is absent from the list.
	ErrItemNotFound = errors.New("item not found")
	// ErrPermissionDenied means the user holds no sufficient role on the list.
	ErrPermissionDenied = errors.New("permission denied")
)
