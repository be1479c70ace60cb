package dto

import (
	"time"

	"github.com/credittrack/credittrack/internal/model"
)

// CreditResponse represents a credit in API responses. Amount is a fixed-point string.
type CreditResponse struct {
	ID         int64     `json:"id"`
	ClientName string    `json:"client_name"`
	ClientID   string    `json:"client_id"`
	Amount     string    `json:"amount"`
	Rate       float64   `json:"rate"`
	Term       int       `json:"term"`
	Commercial string    `json:"commercial"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreditListResponse is one page of credits.
type CreditListResponse struct {
	Items   []CreditResponse `json:"items"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Total   int64            `json:"total"`
	Pages   int              `json:"pages"`
}

// DistinctResponse lists the distinct filter values.
type DistinctResponse struct {
	ClientName []string `json:"client_name"`
	ClientID   []string `json:"client_id"`
	Commercial []string `json:"commercial"`
}

// ToCreditResponse converts a Credit model to CreditResponse DTO.
func ToCreditResponse(c *model.Credit) CreditResponse {
	return CreditResponse{
		ID:         c.ID,
		ClientName: c.ClientName,
		ClientID:   c.ClientID,
		Amount:     c.AmountString(),
		Rate:       c.Rate,
		Term:       c.Term,
		Commercial: c.Commercial,
		CreatedAt:  c.CreatedAt.UTC(),
	}
}

// ToCreditListResponse converts a CreditPage to its DTO.
func ToCreditListResponse(p *model.CreditPage) *CreditListResponse {
	items := make([]CreditResponse, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, ToCreditResponse(c))
	}
	return &CreditListResponse{
		Items:   items,
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   p.Total,
		Pages:   p.Pages,
	}
}

// ToDistinctResponse converts CreditDistinct to its DTO, never emitting null lists.
func ToDistinctResponse(d *model.CreditDistinct) *DistinctResponse {
	nonNil := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	return &DistinctResponse{
		ClientName: nonNil(d.ClientNames),
		ClientID:   nonNil(d.ClientIDs),
		Commercial: nonNil(d.Commercials),
	}
}
