package util

import "github.com/google/uuid"

// NewID returns a prefixed random identifier such as "template_<uuid>".
func NewID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}

func NewIdempotencyKey() string {
	return uuid.NewString()
}
