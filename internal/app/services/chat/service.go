// Package chat owns the reactive message store for the study assistant
// conversation.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/chat"
	"github.com/studyflow-app/studyflow-core/internal/app/metrics"
	"github.com/studyflow-app/studyflow-core/internal/app/services/feed"
	"github.com/studyflow-app/studyflow-core/internal/app/services/identity"
	"github.com/studyflow-app/studyflow-core/internal/app/storage"
	"github.com/studyflow-app/studyflow-core/internal/errors"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
	"github.com/studyflow-app/studyflow-core/supabase/client"
)

// Service is the reactive message store.
type Service struct {
	mu sync.Mutex

	col      storage.Collection[chat.Message]
	identity *identity.Service
	feed     *feed.Feed[chat.Message]
	log      *logger.Logger
}

// New creates the message store on top of a persistent collection.
func New(col storage.Collection[chat.Message], ident *identity.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("chat")
	}
	return &Service{
		col:      col,
		identity: ident,
		feed:     feed.New[chat.Message](),
		log:      log,
	}
}

// Subscribe registers fn and immediately delivers the conversation so far,
// oldest first. The returned function cancels the subscription.
func (s *Service) Subscribe(ctx context.Context, fn func([]chat.Message)) (func(), error) {
	snapshot, err := s.Messages(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed.Publish(snapshot)
	metrics.StoreNotification(storage.DomainChat)
	return s.feed.Subscribe(fn), nil
}

// Messages lists the active user's conversation in chronological order.
// An anonymous session sees an empty conversation.
func (s *Service) Messages(ctx context.Context) ([]chat.Message, error) {
	current := s.identity.ResolveSync()
	if current == nil {
		return []chat.Message{}, nil
	}
	return s.col.List(ctx, current.ID)
}

// AddMessage appends one message to the conversation and pushes the new
// snapshot to every subscriber.
func (s *Service) AddMessage(ctx context.Context, role chat.Role, text string) (*chat.Message, error) {
	current := s.identity.ResolveSync()
	if current == nil {
		return nil, errors.Unauthenticated("")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.InvalidInput("message text is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := chat.Message{
		ID:        uuid.NewString(),
		UserID:    current.ID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.col.Append(ctx, msg); err != nil {
		return nil, err
	}
	metrics.StoreWrite(storage.DomainChat, "append")

	s.notifyLocked(ctx, current.ID)
	return &msg, nil
}

// ClearHistory deletes the active user's conversation and pushes an empty
// snapshot.
func (s *Service) ClearHistory(ctx context.Context) error {
	current := s.identity.ResolveSync()
	if current == nil {
		return errors.Unauthenticated("")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.col.Clear(ctx, current.ID); err != nil {
		return err
	}
	metrics.StoreWrite(storage.DomainChat, "clear")
	s.log.Info("conversation cleared", "user_id", current.ID)

	s.notifyLocked(ctx, current.ID)
	return nil
}

// AttachRealtime re-lists and notifies whenever the backing table changes
// out from under us.
func (s *Service) AttachRealtime(ctx context.Context, rc *client.RealtimeClient, table string) error {
	return rc.SubscribeToTable(ctx, table, func(change client.TableChange) {
		current := s.identity.ResolveSync()
		if current == nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.log.Debug("realtime change", "table", change.Table, "event", change.Event)
		s.notifyLocked(ctx, current.ID)
	})
}

// ResetFeed forgets the replay snapshot. Called on sign-out so the next
// subscriber does not see the previous user's conversation.
func (s *Service) ResetFeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed.Reset()
}

func (s *Service) notifyLocked(ctx context.Context, userID string) {
	snapshot, err := s.col.List(ctx, userID)
	if err != nil {
		s.log.Error("refresh message snapshot", "error", err)
		return
	}
	s.feed.Publish(snapshot)
	metrics.StoreNotification(storage.DomainChat)
}
