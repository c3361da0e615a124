package service

import (
	"sync"

	"github.com/Hizashii/money/model"
)

// InvoiceStore is an in-memory, append-only list of extracted invoices.
// Records live for the lifetime of the process.
type InvoiceStore struct {
	invoices []model.Invoice
	mu       sync.RWMutex
}

func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{invoices: make([]model.Invoice, 0)}
}

// Append adds records in the given order.
func (s *InvoiceStore) Append(invoices ...model.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = append(s.invoices, invoices...)
}

// List returns a snapshot copy in insertion order. Never nil.
func (s *InvoiceStore) List() []model.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Invoice, len(s.invoices))
	copy(out, s.invoices)
	return out
}

func (s *InvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = make([]model.Invoice, 0)
}

// Count returns the number of invoices in the store
func (s *InvoiceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}
