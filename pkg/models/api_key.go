package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates a caller as OwnerID. Jobs and persisted
// transcriptions are scoped to that owner. The raw key is printed once by
// the apikey command; only its bcrypt hash and lookup prefix are stored.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	OwnerID    string     `db:"owner_id"     json:"owner_id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// Revoked reports whether the key was soft-deleted.
func (k *APIKey) Revoked() bool { return k.DeletedAt != nil }
