package xid

import "github.com/google/uuid"

// New returns a random identifier such as "sess-6f1c...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
