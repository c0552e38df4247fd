// Package storage defines the persistence ports for the state layer. The
// composition root selects an implementation once at startup; services never
// branch on which backend is configured.
package storage

import "context"

// Record is a stored entity scoped to exactly one owning user.
type Record interface {
	GetID() string
	OwnerID() string
}

// Collection persists an ordered per-user set of records. List pulls the
// collection fresh on every call; there is no caching layer here.
type Collection[T Record] interface {
	// List returns the full ordered collection for userID.
	List(ctx context.Context, userID string) ([]T, error)
	// Append adds one record for its owning user. IDs are not deduplicated;
	// callers must generate unique ones.
	Append(ctx context.Context, rec T) error
	// Patch merges fields into the record matching id. No-op if absent.
	Patch(ctx context.Context, id string, fields map[string]any) error
	// Clear removes all records for userID.
	Clear(ctx context.Context, userID string) error
}

// KV is the local durable key-value surface. It mirrors a browser profile
// store: synchronous, string-valued, partitioned by literal key templates.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Singleton keys used by the identity service.
const (
	KeyActiveUser = "studyflow_active_user"
	KeyRememberMe = "studyflow_remember_me"
	KeyUsersDB    = "studyflow_users_database"
)

// Collection key domains.
const (
	DomainJobs    = "studyflow_jobs"
	DomainChat    = "studyflow_chat"
	DomainCredits = "studyflow_credits"
)

// CollectionKey builds the per-user key for a collection domain.
func CollectionKey(domain, userID string) string {
	return domain + "_" + userID
}
