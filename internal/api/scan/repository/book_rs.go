package scanRepository

import (
	"context"
	"database/sql"
	"time"

	"Shelfscan/internal/entity"
	contextPkg "Shelfscan/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type BookDB struct {
	ID        sql.NullString `db:"id"`
	UserID    sql.NullString `db:"user_id"`
	Title     sql.NullString `db:"title"`
	Author    sql.NullString `db:"author"`
	ISBN      sql.NullString `db:"isbn"`
	CoverURL  sql.NullString `db:"cover_url"`
	Publisher sql.NullString `db:"publisher"`
	Year      sql.NullString `db:"year"`
	Category  sql.NullString `db:"category"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *bookRepository) GetBooksByUserID(c context.Context, userID string) ([]entity.Book, error) {
	requestID := contextPkg.GetRequestID(c)
	var books []BookDB

	argsKV := map[string]interface{}{
		"user_id": userID,
	}

	query, args, err := sqlx.Named(queryGetBooksByUserID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetBooksByUserID named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &books, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetBooksByUserID execution err")
		return nil, err
	}

	result := make([]entity.Book, 0, len(books))
	for _, book := range books {
		result = append(result, r.makeBook(book))
	}

	return result, nil
}

func (r *bookRepository) CreateBook(c context.Context, book entity.Book) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":         book.ID,
		"user_id":    book.UserID,
		"title":      book.Title,
		"author":     book.Author,
		"isbn":       book.ISBN,
		"cover_url":  book.CoverURL,
		"publisher":  book.Publisher,
		"year":       book.Year,
		"category":   book.Category,
		"created_at": time.Now(),
		"updated_at": time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateBook, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateBook")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating book")
		return err
	}

	return nil
}

func (r *bookRepository) makeBook(book BookDB) entity.Book {
	return entity.Book{
		ID:        book.ID.String,
		UserID:    book.UserID.String,
		Title:     book.Title.String,
		Author:    book.Author.String,
		ISBN:      book.ISBN.String,
		CoverURL:  book.CoverURL.String,
		Publisher: book.Publisher.String,
		Year:      book.Year.String,
		Category:  book.Category.String,
		CreatedAt: book.CreatedAt,
		UpdatedAt: book.UpdatedAt,
	}
}
