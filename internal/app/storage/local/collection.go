// Package local implements the collection port on top of the local KV
// surface. Each user's collection is stored as one JSON array under
// "<domain>_<userID>"; every mutation is a whole-collection read-modify-write
// so there are no partial writes to observe.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/studyflow-app/studyflow-core/internal/app/storage"
)

// Collection is a KV-backed implementation of storage.Collection. The less
// function defines the record-specific ordering applied on every read.
type Collection[T storage.Record] struct {
	mu     sync.Mutex
	kv     storage.KV
	domain string
	less   func(a, b T) bool
}

// New creates a collection for a domain. less orders the result of List.
func New[T storage.Record](kv storage.KV, domain string, less func(a, b T) bool) *Collection[T] {
	return &Collection[T]{kv: kv, domain: domain, less: less}
}

func (c *Collection[T]) List(_ context.Context, userID string) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(userID)
}

func (c *Collection[T]) Append(_ context.Context, rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	userID := rec.OwnerID()
	recs, err := c.loadLocked(userID)
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	return c.saveLocked(userID, recs)
}

func (c *Collection[T]) Patch(_ context.Context, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The record's owner is unknown until found, so patching scans every
	// collection key this domain has written. In practice there is one
	// active user per profile.
	users, err := c.knownUsersLocked()
	if err != nil {
		return err
	}
	for _, userID := range users {
		recs, err := c.loadLocked(userID)
		if err != nil {
			return err
		}
		for i, rec := range recs {
			if rec.GetID() != id {
				continue
			}
			merged, err := mergeFields(rec, fields)
			if err != nil {
				return err
			}
			recs[i] = merged
			return c.saveLocked(userID, recs)
		}
	}
	return nil
}

func (c *Collection[T]) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Remove(storage.CollectionKey(c.domain, userID)); err != nil {
		return fmt.Errorf("clear %s: %w", c.domain, err)
	}
	return c.forgetUserLocked(userID)
}

func (c *Collection[T]) loadLocked(userID string) ([]T, error) {
	raw, ok, err := c.kv.Get(storage.CollectionKey(c.domain, userID))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.domain, err)
	}
	if !ok || raw == "" {
		return []T{}, nil
	}
	var recs []T
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.domain, err)
	}
	if c.less != nil {
		sort.SliceStable(recs, func(i, j int) bool { return c.less(recs[i], recs[j]) })
	}
	return recs, nil
}

func (c *Collection[T]) saveLocked(userID string, recs []T) error {
	raw, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.domain, err)
	}
	if err := c.kv.Set(storage.CollectionKey(c.domain, userID), string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", c.domain, err)
	}
	return c.rememberUserLocked(userID)
}

// mergeFields overlays fields onto rec through its JSON representation, so
// the patch semantics match the remote backend's column update.
func mergeFields[T any](rec T, fields map[string]any) (T, error) {
	var zero T

	raw, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode record: %w", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return zero, fmt.Errorf("decode record: %w", err)
	}
	for k, v := range fields {
		asMap[k] = v
	}
	merged, err := json.Marshal(asMap)
	if err != nil {
		return zero, fmt.Errorf("encode merged record: %w", err)
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, fmt.Errorf("decode merged record: %w", err)
	}
	return out, nil
}

// The domain index tracks which user keys exist so Patch can locate a record
// without caller-supplied identity.

func (c *Collection[T]) indexKey() string { return c.domain + "__index" }

func (c *Collection[T]) knownUsersLocked() ([]string, error) {
	raw, ok, err := c.kv.Get(c.indexKey())
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var users []string
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("decode %s index: %w", c.domain, err)
	}
	return users, nil
}

func (c *Collection[T]) rememberUserLocked(userID string) error {
	users, err := c.knownUsersLocked()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u == userID {
			return nil
		}
	}
	users = append(users, userID)
	raw, _ := json.Marshal(users)
	return c.kv.Set(c.indexKey(), string(raw))
}

func (c *Collection[T]) forgetUserLocked(userID string) error {
	users, err := c.knownUsersLocked()
	if err != nil {
		return err
	}
	kept := users[:0]
	for _, u := range users {
		if u != userID {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return nil
	}
	raw, _ := json.Marshal(kept)
	return c.kv.Set(c.indexKey(), string(raw))
}
