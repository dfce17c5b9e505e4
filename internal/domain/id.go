package domain

import "github.com/oklog/ulid/v2"

// NewID returns a new document identifier. IDs sort by creation time.
func NewID() string {
	return ulid.Make().String()
}
