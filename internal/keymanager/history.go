package keymanager

import (
	"time"

	"github.com/google/uuid"
)

// RotationReason records why a key pair was rotated.
type RotationReason string

const (
	ReasonInitialGeneration RotationReason = "initial_generation"
	ReasonScheduledRotation RotationReason = "scheduled_rotation"
	ReasonManualRotation    RotationReason = "manual_rotation"
	ReasonEmergencyRotation RotationReason = "emergency_rotation"
)

// RotationHistoryEntry is one append-only record of a key generation.
type RotationHistoryEntry struct {
	ID        string         `json:"id"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
	RotatedAt time.Time      `json:"rotatedAt"`
	Reason    RotationReason `json:"reason"`
}

// RotationHistory is the persisted aggregate of all rotations. Versions
// are strictly increasing across entries and TotalRotations always equals
// the entry count.
type RotationHistory struct {
	TotalRotations int                    `json:"totalRotations"`
	Entries        []RotationHistoryEntry `json:"entries"`
	CreatedAt      time.Time              `json:"createdAt"`
	LastUpdated    time.Time              `json:"lastUpdated"`
}

// NewRotationHistory creates an empty history.
func NewRotationHistory(now time.Time) *RotationHistory {
	return &RotationHistory{
		Entries:     []RotationHistoryEntry{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// NextVersion returns the next key version: one past the highest version
// recorded, or 1 for an empty history.
func (h *RotationHistory) NextVersion() int {
	max := 0
	for _, entry := range h.Entries {
		if entry.Version > max {
			max = entry.Version
		}
	}
	return max + 1
}

// Append records a rotation, keeping the aggregate invariants.
func (h *RotationHistory) Append(version int, createdAt, expiresAt, rotatedAt time.Time, reason RotationReason) {
	h.Entries = append(h.Entries, RotationHistoryEntry{
		ID:        uuid.NewString(),
		Version:   version,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		RotatedAt: rotatedAt,
		Reason:    reason,
	})
	h.TotalRotations = len(h.Entries)
	h.LastUpdated = rotatedAt
}
