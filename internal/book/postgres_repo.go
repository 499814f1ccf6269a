package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const bookColumns = `id, title, author, published_year, isbn, availability, created_at, updated_at`

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.PublishedYear, &b.ISBN,
		&b.Availability, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// buildListQuery renders the filtered listing; it never interpolates values.
func buildListQuery(q Query) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if q.Title != "" {
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", argn))
		args = append(args, "%"+escapeLike(q.Title)+"%")
		argn++
	}

	if q.Author != "" {
		clauses = append(clauses, fmt.Sprintf("author ILIKE $%d", argn))
		args = append(args, "%"+escapeLike(q.Author)+"%")
		argn++
	}

	if q.AfterID > 0 {
		clauses = append(clauses, fmt.Sprintf("id > $%d", argn))
		args = append(args, q.AfterID)
		argn++
	}

	sql := fmt.Sprintf("SELECT %s FROM books WHERE %s ORDER BY id", bookColumns, strings.Join(clauses, " AND "))
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d", argn)
		args = append(args, q.Limit)
	}
	return sql, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Book, error) {
	sql, args := buildListQuery(q)

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) GetByISBN(ctx context.Context, isbn string) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, `SELECT `+bookColumns+` FROM books WHERE isbn = $1 LIMIT 1`, isbn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) Create(ctx context.Context, in CreateInput) (Book, error) {
	availability := true
	if in.Availability != nil {
		availability = *in.Availability
	}

	const sql = `
		INSERT INTO books (title, author, published_year, isbn, availability, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + bookColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(timeoutCtx, sql, in.Title, in.Author, in.PublishedYear, in.ISBN, availability))
	if err != nil {
		return Book{}, mapWriteError(err)
	}
	return b, nil
}

func (r *PostgresRepo) Update(ctx context.Context, id int64, in UpdateInput) (Book, error) {
	const sql = `
		UPDATE books SET
			title = COALESCE($2, title),
			author = COALESCE($3, author),
			published_year = COALESCE($4, published_year),
			isbn = COALESCE($5, isbn),
			availability = COALESCE($6, availability),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + bookColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(timeoutCtx, sql, id, in.Title, in.Author, in.PublishedYear, in.ISBN, in.Availability))
	if err != nil {
		return Book{}, mapWriteError(err)
	}
	return b, nil
}

func (r *PostgresRepo) SetAvailability(ctx context.Context, id int64, availability bool) (Book, error) {
	const sql = `
		UPDATE books SET availability = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + bookColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(timeoutCtx, sql, id, availability))
	if err != nil {
		return Book{}, mapWriteError(err)
	}
	return b, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateISBN
	}
	return err
}
