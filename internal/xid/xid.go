package xid

import "github.com/google/uuid"

// New returns a prefixed unique identifier, e.g. "debt-6f1c...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
