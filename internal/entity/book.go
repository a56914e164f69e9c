package entity

import "time"

// Book is a stored record in a user's collection. The matcher only consumes
// ID, Title, Author and ISBN.
type Book struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Author    string    `db:"author"`
	ISBN      string    `db:"isbn"`
	CoverURL  string    `db:"cover_url"`
	Publisher string    `db:"publisher"`
	Year      string    `db:"year"`
	Category  string    `db:"category"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
