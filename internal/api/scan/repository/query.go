package scanRepository

const (
	queryGetBooksByUserID = `
		SELECT
			id,
			user_id,
			title,
			author,
			isbn,
			cover_url,
			publisher,
			year,
			category,
			created_at,
			updated_at
		FROM books
		WHERE user_id = :user_id
		ORDER BY created_at DESC
	`

	queryCreateBook = `
		INSERT INTO books (
			id,
			user_id,
			title,
			author,
			isbn,
			cover_url,
			publisher,
			year,
			category,
			created_at,
			updated_at
		) VALUES (
			:id,
			:user_id,
			:title,
			:author,
			:isbn,
			:cover_url,
			:publisher,
			:year,
			:category,
			:created_at,
			:updated_at
		)
	`
)
