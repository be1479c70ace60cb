package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Column limits of the credits table.
const (
	MaxClientNameLength = 120
	MaxClientIDLength   = 50
	MaxCommercialLength = 120
)

// AmountScale is the number of fractional digits stored for an amount.
const AmountScale = 2

// MaxAmount is the exclusive upper bound of numeric(12,2).
var MaxAmount = decimal.New(1, 10)

// Credit is a loan-like entry tracked per client and commercial agent.
type Credit struct {
	ID         int64
	ClientName string
	ClientID   string
	Amount     decimal.Decimal
	Rate       float64
	Term       int
	Commercial string
	CreatedAt  time.Time
	UserID     int64
}

// AmountString renders the amount as a fixed-point string with two decimals.
func (c *Credit) AmountString() string {
	return c.Amount.StringFixed(AmountScale)
}

// CreditUpdate carries the fields of a partial update; nil means unchanged.
type CreditUpdate struct {
	ClientName *string
	ClientID   *string
	Amount     *decimal.Decimal
	Rate       *float64
	Term       *int
	Commercial *string
}

// IsEmpty reports whether the update changes nothing.
func (u *CreditUpdate) IsEmpty() bool {
	return u.ClientName == nil && u.ClientID == nil && u.Amount == nil &&
		u.Rate == nil && u.Term == nil && u.Commercial == nil
}

// Apply copies the set fields onto c.
func (u *CreditUpdate) Apply(c *Credit) {
	if u.ClientName != nil {
		c.ClientName = *u.ClientName
	}
	if u.ClientID != nil {
		c.ClientID = *u.ClientID
	}
	if u.Amount != nil {
		c.Amount = *u.Amount
	}
	if u.Rate != nil {
		c.Rate = *u.Rate
	}
	if u.Term != nil {
		c.Term = *u.Term
	}
	if u.Commercial != nil {
		c.Commercial = *u.Commercial
	}
}

// CreditFilter narrows a credit listing.
type CreditFilter struct {
	// ClientID matches exactly when non-empty.
	ClientID string
	// Commercial matches case-insensitively as a substring when non-empty.
	Commercial string
}

// CreditPage is one page of a credit listing.
type CreditPage struct {
	Items   []*Credit
	Page    int
	PerPage int
	Total   int64
	Pages   int
}

// CreditDistinct holds the distinct values used to populate filter controls.
type CreditDistinct struct {
	ClientNames []string
	ClientIDs   []string
	Commercials []string
}
