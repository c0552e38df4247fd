package identity

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/credit"
	"github.com/studyflow-app/studyflow-core/internal/app/domain/user"
	"github.com/studyflow-app/studyflow-core/internal/app/metrics"
	"github.com/studyflow-app/studyflow-core/internal/errors"
)

// Deduct atomically checks the balance and charges cost credits. The whole
// check-then-deduct runs under the service mutex, so two concurrent callers
// can never both pass the check against the same balance. The balance never
// goes below zero.
func (s *Service) Deduct(ctx context.Context, cost float64, reference string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.resolveSyncLocked()
	if current == nil {
		return nil, errors.Unauthenticated("")
	}

	if current.Credits < cost {
		metrics.CreditRejection()
		s.log.Warn("credit deduction rejected",
			"user_id", current.ID,
			"available", current.Credits,
			"required", cost,
		)
		return nil, errors.InsufficientCredits(current.Credits, cost)
	}

	balance := math.Max(0, current.Credits-cost)
	updated, err := s.updateLocked(user.Changes{Credits: &balance})
	if err != nil {
		return nil, err
	}

	if s.ledger != nil {
		tx := credit.Transaction{
			ID:           uuid.NewString(),
			UserID:       updated.ID,
			Amount:       -cost,
			BalanceAfter: balance,
			Reference:    reference,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.ledger.Append(ctx, tx); err != nil {
			// The deduction already happened; a ledger write failure is
			// an observability gap, not a reason to undo it.
			s.log.Error("record credit transaction", "error", err, "user_id", updated.ID)
		}
	}

	metrics.CreditDeduction()
	s.log.Debug("credits deducted",
		"user_id", updated.ID,
		"cost", cost,
		"balance", balance,
		"reference", reference,
	)
	return updated, nil
}

// Transactions lists the current user's ledger entries, newest first,
// truncated to limit when limit is positive.
func (s *Service) Transactions(ctx context.Context, limit int) ([]credit.Transaction, error) {
	current := s.ResolveSync()
	if current == nil {
		return nil, errors.Unauthenticated("")
	}
	if s.ledger == nil {
		return []credit.Transaction{}, nil
	}

	txs, err := s.ledger.List(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}
