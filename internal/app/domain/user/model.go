// Package user defines the account model owned by the identity service.
package user

import "time"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "Free"
	PlanPro     Plan = "Pro"
	PlanPremium Plan = "Premium"
)

// Credit allowances per plan.
var PlanCredits = map[Plan]float64{
	PlanFree:    5,
	PlanPro:     100,
	PlanPremium: 500,
}

// User is the current account. One live instance per session; mutated only
// through the identity service.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Plan       Plan      `json:"plan"`
	Avatar     string    `json:"avatar"`
	Credits    float64   `json:"credits"`
	MaxCredits float64   `json:"maxCredits"`
	JoinedAt   time.Time `json:"joinedAt"`
	Language   string    `json:"language"`
}

// Changes carries a partial update. Nil fields are left untouched.
type Changes struct {
	Name     *string  `json:"name,omitempty"`
	Plan     *Plan    `json:"plan,omitempty"`
	Avatar   *string  `json:"avatar,omitempty"`
	Credits  *float64 `json:"credits,omitempty"`
	Language *string  `json:"language,omitempty"`
}

// Apply merges the changes into a copy of u and returns it.
func (c Changes) Apply(u User) User {
	if c.Name != nil {
		u.Name = *c.Name
	}
	if c.Plan != nil {
		u.Plan = *c.Plan
		if max, ok := PlanCredits[*c.Plan]; ok {
			u.MaxCredits = max
		}
	}
	if c.Avatar != nil {
		u.Avatar = *c.Avatar
	}
	if c.Credits != nil {
		u.Credits = *c.Credits
	}
	if c.Language != nil {
		u.Language = *c.Language
	}
	return u
}

// DefaultAvatar returns the generated avatar URL for an email.
func DefaultAvatar(email string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + email
}
