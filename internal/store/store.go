// internal/store/store.go
package store

import (
	"loandesk/internal/audit"
	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/membership"
)

// Store is everything a backend provides: the engine's collections and unit
// of work, the catalog and membership repositories, and the full scans the
// audit needs.
type Store interface {
	circulation.Store
	circulation.Transactor
	catalog.Repository
	membership.Repository
	audit.Source
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
