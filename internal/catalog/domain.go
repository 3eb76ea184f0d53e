// internal/catalog/domain.go
package catalog

// Item is a lendable catalog entry keyed by ISBN.
type Item struct {
	ISBN      string `json:"isbn" db:"isbn"`
	Title     string `json:"title" db:"title"`
	Available bool   `json:"available" db:"available"`
}

// NewItem returns an available item.
func NewItem(isbn, title string) Item {
	return Item{ISBN: isbn, Title: title, Available: true}
}

// MarkBorrowed flags the item as out on loan.
func (i *Item) MarkBorrowed() { i.Available = false }

// MarkReturned flags the item as back on the shelf.
func (i *Item) MarkReturned() { i.Available = true }
