package encoding

import (
	"fmt"

	"github.com/google/uuid"
)

// StoreIDSize is the number of bytes a store id occupies on disk.
const StoreIDSize = 16

// StoreID identifies the store a transaction log and its checkpoints belong to.
type StoreID [StoreIDSize]byte

// NewStoreID creates a new random store id.
func NewStoreID() StoreID {
	return StoreID(uuid.New())
}

// ParseStoreID parses the textual representation created by StoreID.String.
func ParseStoreID(value string) (StoreID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return StoreID{}, fmt.Errorf("parsing store id %q: %w", value, err)
	}
	return StoreID(parsed), nil
}

// IsZero reports if the store id was never set.
func (s StoreID) IsZero() bool {
	return s == StoreID{}
}

// String returns the canonical textual representation of the store id.
func (s StoreID) String() string {
	return uuid.UUID(s).String()
}
