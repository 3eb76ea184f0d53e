// internal/store/memory.go

// Package store holds the entity store backends for items, members and loans.
package store

import (
	"context"
	"sort"
	"sync"

	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/membership"
)

// Memory keeps every collection in process memory. Values are copied in and
// out so callers never share state with the store.
type Memory struct {
	mu   sync.RWMutex
	data memoryState
}

type memoryState struct {
	items   map[string]catalog.Item
	members map[string]membership.Member
	loans   map[string]circulation.Loan
}

func NewMemory() *Memory {
	return &Memory{data: memoryState{
		items:   make(map[string]catalog.Item),
		members: make(map[string]membership.Member),
		loans:   make(map[string]circulation.Loan),
	}}
}

func (m *Memory) GetItem(_ context.Context, isbn string) (*catalog.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getItem(isbn), nil
}

func (m *Memory) PutItem(_ context.Context, item catalog.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.items[item.ISBN] = item
	return nil
}

func (m *Memory) InsertItem(_ context.Context, item catalog.Item) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.items[item.ISBN]; ok {
		return false, nil
	}
	m.data.items[item.ISBN] = item
	return true, nil
}

func (m *Memory) UpdateItemTitle(_ context.Context, isbn, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.data.items[isbn]
	if !ok {
		return false, nil
	}
	item.Title = title
	m.data.items[isbn] = item
	return true, nil
}

func (m *Memory) ListItems(_ context.Context) ([]catalog.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]catalog.Item, 0, len(m.data.items))
	for _, item := range m.data.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ISBN < items[j].ISBN })
	return items, nil
}

func (m *Memory) GetMember(_ context.Context, id string) (*membership.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getMember(id), nil
}

func (m *Memory) PutMember(_ context.Context, member membership.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.members[member.ID] = member
	return nil
}

func (m *Memory) InsertMember(_ context.Context, member membership.Member) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.members[member.ID]; ok {
		return false, nil
	}
	m.data.members[member.ID] = member
	return true, nil
}

func (m *Memory) ListMembers(_ context.Context) ([]membership.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]membership.Member, 0, len(m.data.members))
	for _, member := range m.data.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (m *Memory) GetLoan(_ context.Context, id string) (*circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getLoan(id), nil
}

func (m *Memory) PutLoan(_ context.Context, loan circulation.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.loans[loan.ID] = cloneLoan(loan)
	return nil
}

func (m *Memory) ListLoans(_ context.Context) ([]circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loans := make([]circulation.Loan, 0, len(m.data.loans))
	for _, loan := range m.data.loans {
		loans = append(loans, cloneLoan(loan))
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
	return loans, nil
}

func (m *Memory) FindActiveLoanForItem(_ context.Context, isbn string) (*circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.findActiveLoanForItem(isbn), nil
}

func (m *Memory) FindActiveLoansForMember(_ context.Context, memberID string) ([]circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.findActiveLoansForMember(memberID), nil
}

// Atomically runs fn with the store locked. Writes made through the store
// handed to fn are undone if fn fails.
func (m *Memory) Atomically(ctx context.Context, fn func(circulation.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{data: &m.data}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *memoryState) getItem(isbn string) *catalog.Item {
	item, ok := s.items[isbn]
	if !ok {
		return nil
	}
	return &item
}

func (s *memoryState) getMember(id string) *membership.Member {
	member, ok := s.members[id]
	if !ok {
		return nil
	}
	return &member
}

func (s *memoryState) getLoan(id string) *circulation.Loan {
	loan, ok := s.loans[id]
	if !ok {
		return nil
	}
	loan = cloneLoan(loan)
	return &loan
}

func (s *memoryState) findActiveLoanForItem(isbn string) *circulation.Loan {
	for _, loan := range s.loans {
		if loan.ItemISBN == isbn && loan.IsActive() {
			loan = cloneLoan(loan)
			return &loan
		}
	}
	return nil
}

func (s *memoryState) findActiveLoansForMember(memberID string) []circulation.Loan {
	var loans []circulation.Loan
	for _, loan := range s.loans {
		if loan.MemberID == memberID && loan.IsActive() {
			loans = append(loans, cloneLoan(loan))
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].LoanDate != loans[j].LoanDate {
			return loans[i].LoanDate.Before(loans[j].LoanDate)
		}
		return loans[i].ID < loans[j].ID
	})
	return loans
}

// memoryTx works on the locked state and keeps an undo log of its writes.
type memoryTx struct {
	data *memoryState
	undo []func()
}

func (t *memoryTx) GetItem(_ context.Context, isbn string) (*catalog.Item, error) {
	return t.data.getItem(isbn), nil
}

func (t *memoryTx) PutItem(_ context.Context, item catalog.Item) error {
	prev, existed := t.data.items[item.ISBN]
	t.undo = append(t.undo, func() {
		if existed {
			t.data.items[item.ISBN] = prev
			return
		}
		delete(t.data.items, item.ISBN)
	})
	t.data.items[item.ISBN] = item
	return nil
}

func (t *memoryTx) GetMember(_ context.Context, id string) (*membership.Member, error) {
	return t.data.getMember(id), nil
}

func (t *memoryTx) PutMember(_ context.Context, member membership.Member) error {
	prev, existed := t.data.members[member.ID]
	t.undo = append(t.undo, func() {
		if existed {
			t.data.members[member.ID] = prev
			return
		}
		delete(t.data.members, member.ID)
	})
	t.data.members[member.ID] = member
	return nil
}

func (t *memoryTx) GetLoan(_ context.Context, id string) (*circulation.Loan, error) {
	return t.data.getLoan(id), nil
}

func (t *memoryTx) PutLoan(_ context.Context, loan circulation.Loan) error {
	prev, existed := t.data.loans[loan.ID]
	t.undo = append(t.undo, func() {
		if existed {
			t.data.loans[loan.ID] = prev
			return
		}
		delete(t.data.loans, loan.ID)
	})
	t.data.loans[loan.ID] = cloneLoan(loan)
	return nil
}

func (t *memoryTx) FindActiveLoanForItem(_ context.Context, isbn string) (*circulation.Loan, error) {
	return t.data.findActiveLoanForItem(isbn), nil
}

func (t *memoryTx) FindActiveLoansForMember(_ context.Context, memberID string) ([]circulation.Loan, error) {
	return t.data.findActiveLoansForMember(memberID), nil
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func cloneLoan(loan circulation.Loan) circulation.Loan {
	if loan.ReturnDate != nil {
		d := *loan.ReturnDate
		loan.ReturnDate = &d
	}
	return loan
}
