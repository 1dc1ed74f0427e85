package util

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a random (v4) UUID string. uuid.New panics only when
// the system entropy source fails.
func GenerateUUID() string {
	return uuid.New().String()
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
