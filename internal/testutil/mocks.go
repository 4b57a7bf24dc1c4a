package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cassiomorais/invoicing/internal/domain/card"
	"github.com/cassiomorais/invoicing/internal/domain/customer"
	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/event"
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
	"github.com/cassiomorais/invoicing/internal/service"
)

// In-memory repository mocks. Every method can be overridden per test via
// its *Func field; the default is a map-backed implementation with the same
// error contract as the postgres repositories.

// MockCustomerRepository is an in-memory customer.Repository
type MockCustomerRepository struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*customer.Customer

	CreateFunc     func(ctx context.Context, c *customer.Customer) error
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	GetByEmailFunc func(ctx context.Context, email string) (*customer.Customer, error)
	UpdateFunc     func(ctx context.Context, c *customer.Customer) error
}

func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{customers: make(map[uuid.UUID]*customer.Customer)}
}

func (m *MockCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.customers {
		if existing.Email == c.Email {
			return errors.ErrDuplicateEmail
		}
	}
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, errors.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCustomerRepository) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errors.ErrCustomerNotFound
}

func (m *MockCustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.ID]; !ok {
		return errors.ErrCustomerNotFound
	}
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

// MockInvoiceRepository is an in-memory invoice.Repository
type MockInvoiceRepository struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*invoice.Invoice

	CreateFunc func(ctx context.Context, inv *invoice.Invoice) error
	UpdateFunc func(ctx context.Context, inv *invoice.Invoice) error
}

func NewMockInvoiceRepository() *MockInvoiceRepository {
	return &MockInvoiceRepository{invoices: make(map[uuid.UUID]*invoice.Invoice)}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.Items = append([]invoice.Item(nil), inv.Items...)
	return &cp
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, inv)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return errors.ErrDuplicateInvoiceNumber
		}
	}
	m.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, errors.ErrInvoiceNotFound
	}
	return copyInvoice(inv), nil
}

func (m *MockInvoiceRepository) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.InvoiceNumber == number {
			return copyInvoice(inv), nil
		}
	}
	return nil, errors.ErrInvoiceNotFound
}

func (m *MockInvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, inv)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[inv.ID]; !ok {
		return errors.ErrInvoiceNotFound
	}
	m.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (m *MockInvoiceRepository) matches(inv *invoice.Invoice, filter invoice.ListFilter) bool {
	if filter.Status != "" && inv.Status != filter.Status {
		return false
	}
	return true
}

func (m *MockInvoiceRepository) List(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*invoice.Invoice
	for _, inv := range m.invoices {
		if m.matches(inv, filter) {
			out = append(out, copyInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockInvoiceRepository) Count(ctx context.Context, filter invoice.ListFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inv := range m.invoices {
		if m.matches(inv, filter) {
			n++
		}
	}
	return n, nil
}

func (m *MockInvoiceRepository) StatusCounts(ctx context.Context) (map[invoice.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[invoice.Status]int64)
	for _, inv := range m.invoices {
		counts[inv.Status]++
	}
	return counts, nil
}

func (m *MockInvoiceRepository) OutstandingCents(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, inv := range m.invoices {
		if inv.Status != invoice.StatusFullyPaid {
			total += inv.RemainingCents
		}
	}
	return total, nil
}

// MockPaymentRepository is an in-memory payment.Repository
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment

	CreateFunc                     func(ctx context.Context, p *payment.Payment) error
	UpdateFunc                     func(ctx context.Context, p *payment.Payment) error
	GetByProcessorRefForUpdateFunc func(ctx context.Context, ref string) (*payment.Payment, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[uuid.UUID]*payment.Payment)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ProcessorRef != nil {
		for _, existing := range m.payments {
			if existing.ProcessorRef != nil && *existing.ProcessorRef == *p.ProcessorRef {
				return errors.ErrDuplicateProcessorRef
			}
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, errors.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepository) getByRefLocked(ref string) (*payment.Payment, error) {
	for _, p := range m.payments {
		if p.ProcessorRef != nil && *p.ProcessorRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.ErrPaymentNotFound
}

func (m *MockPaymentRepository) GetByProcessorRef(ctx context.Context, ref string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getByRefLocked(ref)
}

func (m *MockPaymentRepository) GetByProcessorRefForUpdate(ctx context.Context, ref string) (*payment.Payment, error) {
	if m.GetByProcessorRefForUpdateFunc != nil {
		return m.GetByProcessorRefForUpdateFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getByRefLocked(ref)
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		return errors.ErrPaymentNotFound
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.Payment
	for _, p := range m.payments {
		if filter.InvoiceID != uuid.Nil && p.InvoiceID != filter.InvoiceID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockPaymentRepository) LatestCompletedAdvance(ctx context.Context, invoiceID uuid.UUID) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *payment.Payment
	for _, p := range m.payments {
		if p.InvoiceID != invoiceID || p.Type != payment.TypeAdvance || p.Status != payment.StatusCompleted {
			continue
		}
		if latest == nil || (p.CompletedAt != nil && latest.CompletedAt != nil && p.CompletedAt.After(*latest.CompletedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, errors.ErrPaymentNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockPaymentRepository) CompletedTotalCents(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID && p.Status == payment.StatusCompleted {
			total += p.AmountCents
		}
	}
	return total, nil
}

func (m *MockPaymentRepository) SumCompleted(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, p := range m.payments {
		if p.Status == payment.StatusCompleted {
			total += p.AmountCents
		}
	}
	return total, nil
}

// MockCardRepository is an in-memory card.Repository
type MockCardRepository struct {
	mu    sync.Mutex
	cards map[uuid.UUID]*card.Card

	CreateFunc func(ctx context.Context, c *card.Card) error
	UpdateFunc func(ctx context.Context, c *card.Card) error
}

func NewMockCardRepository() *MockCardRepository {
	return &MockCardRepository{cards: make(map[uuid.UUID]*card.Card)}
}

func (m *MockCardRepository) Create(ctx context.Context, c *card.Card) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.cards[c.ID] = &cp
	return nil
}

func (m *MockCardRepository) Update(ctx context.Context, c *card.Card) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[c.ID]; !ok {
		return errors.ErrPaymentMethodNotFound
	}
	cp := *c
	m.cards[c.ID] = &cp
	return nil
}

func (m *MockCardRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*card.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*card.Card
	for _, c := range m.cards {
		if c.CustomerID == customerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockCardRepository) DefaultForCustomer(ctx context.Context, customerID uuid.UUID) (*card.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.CustomerID == customerID && c.IsDefault {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errors.ErrPaymentMethodNotFound
}

func (m *MockCardRepository) SetDefault(ctx context.Context, customerID, cardID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.cards[cardID]
	if !ok || target.CustomerID != customerID {
		return errors.ErrPaymentMethodNotFound
	}
	for _, c := range m.cards {
		if c.CustomerID == customerID {
			c.IsDefault = c.ID == cardID
		}
	}
	return nil
}

// MockEventRepository is an in-memory event.Repository
type MockEventRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID]*event.Unreconciled

	InsertFunc func(ctx context.Context, u *event.Unreconciled) error
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{events: make(map[uuid.UUID]*event.Unreconciled)}
}

func (m *MockEventRepository) Insert(ctx context.Context, u *event.Unreconciled) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ProcessorRef != "" {
		for _, ex := range m.events {
			if ex.Status == event.ResolutionPending && ex.ProcessorRef == u.ProcessorRef {
				return errors.ErrEventAlreadyParked
			}
		}
	}
	cp := *u
	m.events[u.ID] = &cp
	return nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.Unreconciled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.events[id]
	if !ok {
		return nil, errors.ErrUnreconcilable
	}
	cp := *u
	return &cp, nil
}

func (m *MockEventRepository) ListPending(ctx context.Context, limit int) ([]*event.Unreconciled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Unreconciled
	for _, u := range m.events {
		if u.Status == event.ResolutionPending {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockEventRepository) Update(ctx context.Context, u *event.Unreconciled) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[u.ID]; !ok {
		return errors.ErrUnreconcilable
	}
	cp := *u
	m.events[u.ID] = &cp
	return nil
}

// All returns every stored event, for assertions.
func (m *MockEventRepository) All() []*event.Unreconciled {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Unreconciled
	for _, u := range m.events {
		cp := *u
		out = append(out, &cp)
	}
	return out
}

// NoopTxManager runs the function directly, without a real transaction.
type NoopTxManager struct{}

func (NoopTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopLock struct{}

func (noopLock) Release(ctx context.Context) {}

// NoopLockFactory hands out locks that never block.
type NoopLockFactory struct{}

func (NoopLockFactory) Acquire(ctx context.Context, key string) (service.Lock, error) {
	return noopLock{}, nil
}
