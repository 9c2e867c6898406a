package service

import (
	"github.com/google/uuid"
)

// UUIDGenerator derives deterministic UUIDs for activity-log entries.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUIDGenerator.
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// EntryID maps an activity key to a name-based UUID. The same key always
// yields the same ID, so a re-driven append hits the existing row.
func (UUIDGenerator) EntryID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
