package domain

type Book struct {
	ID        int64
	ISBN      string
	Title     string
	Author    string
	Price     int64
	Inventory int
	Purchases int64
}

// Available reports whether the book can cover the requested quantity.
func (b *Book) Available(quantity int) bool {
	return b.Inventory >= quantity
}
