// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"

	"pushrelay/internal/domain/entity"
)

// ProfileRepository resolves a recipient's push destination from the external
// record store. Implementations fail soft: a missing record, a missing field
// or an unreachable store all resolve to entity.EmptyProfile() with a nil
// error, which downstream yields a skipped outcome.
type ProfileRepository interface {
	// ResolveProfile fetches the push token and notification preference for
	// the given recipient.
	ResolveProfile(ctx context.Context, recipientID string) (*entity.RecipientPushProfile, error)
}
