// Package supabase implements the collection port against a hosted Supabase
// table. Once this backend is configured there is no fallback to local
// storage; remote failures propagate unchanged.
package supabase

import (
	"context"
	"fmt"

	"github.com/studyflow-app/studyflow-core/internal/app/storage"
	"github.com/studyflow-app/studyflow-core/internal/errors"
	"github.com/studyflow-app/studyflow-core/supabase/client"
)

// Collection is a PostgREST-backed implementation of storage.Collection.
type Collection[T storage.Record] struct {
	client    *client.Client
	table     string
	orderBy   string
	ascending bool
}

// New creates a collection bound to a table. orderBy and ascending define
// the record-specific ordering applied server-side on List.
func New[T storage.Record](c *client.Client, table, orderBy string, ascending bool) *Collection[T] {
	return &Collection[T]{client: c, table: table, orderBy: orderBy, ascending: ascending}
}

func (c *Collection[T]) List(ctx context.Context, userID string) ([]T, error) {
	resp, err := c.client.From(c.table).
		Select("*").
		Eq("userId", userID).
		Order(c.orderBy, c.ascending).
		Execute(ctx)
	if err != nil {
		return nil, errors.Remote("list "+c.table, err)
	}
	if err := resp.Error(); err != nil {
		return nil, errors.Remote("list "+c.table, err)
	}

	var recs []T
	if err := resp.JSON(&recs); err != nil {
		return nil, errors.Remote("list "+c.table, fmt.Errorf("decode: %w", err))
	}
	if recs == nil {
		recs = []T{}
	}
	return recs, nil
}

func (c *Collection[T]) Append(ctx context.Context, rec T) error {
	resp, err := c.client.From(c.table).ExecuteInsert(ctx, []T{rec})
	if err != nil {
		return errors.Remote("insert "+c.table, err)
	}
	if err := resp.Error(); err != nil {
		return errors.Remote("insert "+c.table, err)
	}
	return nil
}

func (c *Collection[T]) Patch(ctx context.Context, id string, fields map[string]any) error {
	resp, err := c.client.From(c.table).Eq("id", id).ExecuteUpdate(ctx, fields)
	if err != nil {
		return errors.Remote("update "+c.table, err)
	}
	if err := resp.Error(); err != nil {
		return errors.Remote("update "+c.table, err)
	}
	return nil
}

func (c *Collection[T]) Clear(ctx context.Context, userID string) error {
	resp, err := c.client.From(c.table).Eq("userId", userID).ExecuteDelete(ctx)
	if err != nil {
		return errors.Remote("delete "+c.table, err)
	}
	if err := resp.Error(); err != nil {
		return errors.Remote("delete "+c.table, err)
	}
	return nil
}
