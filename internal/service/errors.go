package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("error not found")
	ErrAssetNotActive   = errors.New("error asset is not active")
	ErrNoActiveVariants = errors.New("error no active variants in scope")
)

// BlockedCreationError rejects a single trade-sheet creation attempt while at
// least one active variant in scope carries a direction conflict.
type BlockedCreationError struct {
	Conflicts int
}

func (e *BlockedCreationError) Error() string {
	return fmt.Sprintf("trade sheet creation blocked by %d direction conflict(s)", e.Conflicts)
}
