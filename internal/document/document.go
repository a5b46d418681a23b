// Package document defines the domain types for uploaded documents and their
// processing lifecycle.
package document

import (
	"fmt"
	"strings"
	"time"
)

// ProcessingStatus tracks where a document is in the ingestion pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether the status allows no further transitions.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. Documents never move backward.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Category is the coarse document type assigned by the classifier.
type Category string

const (
	CategoryUnknown       Category = "unknown"
	CategoryInvoice       Category = "invoice"
	CategoryContract      Category = "contract"
	CategoryPurchaseOrder Category = "purchase_order"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{CategoryInvoice, CategoryContract, CategoryPurchaseOrder, CategoryUnknown}
}

// ParseCategory maps a free-form label to a Category. Unrecognized or empty
// labels map to CategoryUnknown; this function never fails.
func ParseCategory(label string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(label))) {
	case CategoryInvoice:
		return CategoryInvoice
	case CategoryContract:
		return CategoryContract
	case CategoryPurchaseOrder:
		return CategoryPurchaseOrder
	default:
		return CategoryUnknown
	}
}

// Document is one uploaded file tracked by the relational store. The vector
// index holds its chunks; the Document row holds only lifecycle state and
// lookup metadata.
type Document struct {
	ID            string
	TransactionID string
	FileName      string
	FilePath      string
	Status        ProcessingStatus
	Category      Category
	FailureReason string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Validate checks the fields required before a document can be ingested.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document: missing id")
	}
	if d.TransactionID == "" {
		return fmt.Errorf("document %s: missing transaction id", d.ID)
	}
	if d.FilePath == "" {
		return fmt.Errorf("document %s: missing file path", d.ID)
	}
	return nil
}
