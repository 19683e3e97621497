package domain

// Book Model. Quantity counts copies currently on the shelf, not copies owned:
// it drops when a request is approved and rises again on return.
type Book struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Title     string `gorm:"size:200;not null;index" json:"title"`
	Author    string `gorm:"size:150;not null;index" json:"author"`
	Category  string `gorm:"size:100;not null;index" json:"category"`
	Quantity  int    `gorm:"not null;default:0;check:chk_books_quantity,quantity >= 0" json:"quantity"`
	Floor     int    `gorm:"not null" json:"floor"`
	Shelf     string `gorm:"size:50;not null" json:"shelf"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"`
}

// IsAvailable reports whether at least one copy can be issued
func (b Book) IsAvailable() bool { return b.Quantity > 0 }
