// internal/membership/domain.go
package membership

// Member is a registered borrower.
type Member struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	// ActiveLoans mirrors the number of active loans held in the store. Only
	// the circulation engine changes it.
	ActiveLoans int `json:"active_loans" db:"active_loans"`
}

func NewMember(id, name string) Member {
	return Member{ID: id, Name: name}
}

func (m *Member) IncrementLoans() { m.ActiveLoans++ }

// DecrementLoans never takes the counter below zero.
func (m *Member) DecrementLoans() {
	if m.ActiveLoans > 0 {
		m.ActiveLoans--
	}
}
