// Package credit defines the ledger records backing credit-gated operations.
package credit

import "time"

// Transaction is one balance movement. Deductions carry a negative amount.
type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Amount       float64   `json:"amount"`
	BalanceAfter float64   `json:"balanceAfter"`
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GetID implements storage.Record.
func (t Transaction) GetID() string { return t.ID }

// OwnerID implements storage.Record.
func (t Transaction) OwnerID() string { return t.UserID }
