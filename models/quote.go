package models

import (
	"strings"
	"time"
)

// QuoteStatus is the commercial state of a quote
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "draft"
	QuoteStatusSent      QuoteStatus = "sent"
	QuoteStatusAccepted  QuoteStatus = "accepted"
	QuoteStatusDeclined  QuoteStatus = "declined"
	QuoteStatusCompleted QuoteStatus = "completed"
)

// QuoteStatuses lists every valid status
var QuoteStatuses = []QuoteStatus{
	QuoteStatusDraft,
	QuoteStatusSent,
	QuoteStatusAccepted,
	QuoteStatusDeclined,
	QuoteStatusCompleted,
}

// quoteTransitions is the operator workflow: draft -> sent -> accepted|declined,
// and only accepted work can be completed.
var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft:    {QuoteStatusSent},
	QuoteStatusSent:     {QuoteStatusAccepted, QuoteStatusDeclined},
	QuoteStatusAccepted: {QuoteStatusCompleted},
}

// ParseQuoteStatus validates a status string
func ParseQuoteStatus(s string) (QuoteStatus, bool) {
	st := QuoteStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range QuoteStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether the workflow allows moving from one status to another.
// Re-applying the current status is always allowed.
func CanTransition(from, to QuoteStatus) bool {
	if from == to {
		return true
	}
	for _, next := range quoteTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CustomerInfo is the contact a quote is addressed to
type CustomerInfo struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Quote is a customer-facing offer derived from one analysis
type Quote struct {
	ID                 string            `json:"id"`
	PropertyAnalysisID string            `json:"propertyAnalysisId"`
	CustomerID         string            `json:"customerId"`
	CustomerInfo       CustomerInfo      `json:"customerInfo"`
	Services           []ServiceEstimate `json:"services"`
	TotalPrice         int               `json:"totalPrice"`
	Status             QuoteStatus       `json:"status"`
	ValidUntil         time.Time         `json:"validUntil"`
	CreatedAt          time.Time         `json:"createdAt"`
	Notes              string            `json:"notes,omitempty"`
}

// Clone returns a copy that shares no slices with q
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	c := *q
	c.Services = CloneEstimates(q.Services)
	return &c
}

// Expired reports whether the quote is past its validity window at t
func (q *Quote) Expired(t time.Time) bool {
	return t.After(q.ValidUntil)
}
