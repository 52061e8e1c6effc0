package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
)

type Repository interface {
	CountBooks(ctx context.Context) (int, error)
	CountInstances(ctx context.Context) (int, error)
	CountInstancesByStatus(ctx context.Context, status model.Status) (int, error)
	CountAuthors(ctx context.Context) (int, error)

	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	InstancesByBook(ctx context.Context, bookID int64) ([]model.BookInstance, error)
	GenresForBooks(ctx context.Context, bookIDs []int64) (map[int64][]model.Genre, error)
	AuthorLabels(ctx context.Context, authorIDs []int64) (map[int64]string, error)

	ListAuthors(ctx context.Context, page, size int) (model.ListAuthors, error)
	GetAuthor(ctx context.Context, id int64) (model.Author, error)
	BooksByAuthor(ctx context.Context, authorID int64) ([]model.Book, error)

	ListLoansForUser(ctx context.Context, username string, page, size int) (model.ListBookInstances, error)

	ListGenres(ctx context.Context) ([]model.Genre, error)
	CreateGenre(ctx context.Context, name string) (model.Genre, error)
	UpdateGenre(ctx context.Context, id int64, name string) (model.Genre, error)
	DeleteGenre(ctx context.Context, id int64) error

	CreateAuthor(ctx context.Context, a model.Author) (model.Author, error)
	UpdateAuthor(ctx context.Context, a model.Author) (model.Author, error)
	DeleteAuthor(ctx context.Context, id int64) error

	CreateBook(ctx context.Context, b model.Book, genreIDs []int64) (model.Book, error)
	UpdateBook(ctx context.Context, b model.Book, genreIDs []int64) (model.Book, error)
	DeleteBook(ctx context.Context, id int64) error

	GetInstance(ctx context.Context, id uuid.UUID) (model.BookInstance, error)
	ListInstances(ctx context.Context, filter model.InstanceFilter, page, size int) (model.ListBookInstances, error)
	CreateInstance(ctx context.Context, bi model.BookInstance) (model.BookInstance, error)
	UpdateInstance(ctx context.Context, bi model.BookInstance) (model.BookInstance, error)
	DeleteInstance(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	genresTableName     = `genres`
	authorsTableName    = `authors`
	booksTableName      = `books`
	bookGenresTableName = `book_genres`
	instancesTableName  = `book_instances`

	// NULLS FIRST keeps copies without a due date at the head of the
	// default copy ordering.
	instanceOrder = `due_back asc nulls first`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// mapErr normalizes storage-level failures: missing rows become
// ErrNotFound, connection failures become ErrStorageUnavailable.
// Constraint violations are mapped at the call sites that can name them.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return errs.ErrStorageUnavailable
	}
	return err
}

func isPgErr(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, code := range codes {
		if pgErr.Code == code {
			return true
		}
	}
	return false
}

func paginate(q sq.SelectBuilder, page, size int) sq.SelectBuilder {
	if page > 0 && size > 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}
	return q
}

func (r *repository) count(ctx context.Context, q sq.SelectBuilder) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	if err := r.db.GetContext(ctx, &cnt, query, args...); err != nil {
		return 0, mapErr(err)
	}
	return cnt, nil
}

func (r *repository) CountBooks(ctx context.Context) (int, error) {
	return r.count(ctx, qb.Select("count(*)").From(booksTableName))
}

func (r *repository) CountInstances(ctx context.Context) (int, error) {
	return r.count(ctx, qb.Select("count(*)").From(instancesTableName))
}

func (r *repository) CountInstancesByStatus(ctx context.Context, status model.Status) (int, error) {
	return r.count(ctx, qb.Select("count(*)").
		From(instancesTableName).
		Where(sq.Eq{"status": status}))
}

func (r *repository) CountAuthors(ctx context.Context) (int, error) {
	return r.count(ctx, qb.Select("count(*)").From(authorsTableName))
}

func (r *repository) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	total, err := r.CountBooks(ctx)
	if err != nil {
		return model.ListBooks{}, err
	}

	q := qb.Select("id", "title", "author_id", "summary", "isbn").
		From(booksTableName).
		OrderBy("id")

	query, args, err := paginate(q, page, size).ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}

	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return model.ListBooks{}, mapErr(err)
	}

	return model.ListBooks{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: total,
		},
		Items: books,
	}, nil
}

func (r *repository) GetBook(ctx context.Context, id int64) (model.Book, error) {
	query, args, err := qb.Select("id", "title", "author_id", "summary", "isbn").
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		return model.Book{}, mapErr(err)
	}

	genres, err := r.GenresForBooks(ctx, []int64{book.ID})
	if err != nil {
		return model.Book{}, err
	}
	book.Genres = genres[book.ID]

	return book, nil
}

// GenresForBooks returns each book's genres in insertion order (the
// join table serial id).
func (r *repository) GenresForBooks(ctx context.Context, bookIDs []int64) (map[int64][]model.Genre, error) {
	if len(bookIDs) == 0 {
		return map[int64][]model.Genre{}, nil
	}
	const q = `
	select bg.book_id, g.id, g.name
	from book_genres bg
	join genres g on g.id = bg.genre_id
	where bg.book_id = any($1)
	order by bg.book_id, bg.id`

	rows, err := r.db.QueryContext(ctx, q, bookIDs)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	res := make(map[int64][]model.Genre, len(bookIDs))
	for rows.Next() {
		var (
			bookID int64
			g      model.Genre
		)
		if err := rows.Scan(&bookID, &g.ID, &g.Name); err != nil {
			return nil, err
		}
		res[bookID] = append(res[bookID], g)
	}
	return res, rows.Err()
}

func (r *repository) AuthorLabels(ctx context.Context, authorIDs []int64) (map[int64]string, error) {
	if len(authorIDs) == 0 {
		return map[int64]string{}, nil
	}
	const q = `select id, first_name, last_name from authors where id = any($1)`

	var authors []model.Author
	if err := r.db.SelectContext(ctx, &authors, q, authorIDs); err != nil {
		return nil, mapErr(err)
	}
	res := make(map[int64]string, len(authors))
	for _, a := range authors {
		res[a.ID] = a.Label()
	}
	return res, nil
}

func (r *repository) InstancesByBook(ctx context.Context, bookID int64) ([]model.BookInstance, error) {
	query, args, err := qb.Select("bi.id", "bi.book_id", "b.title as book_title", "bi.imprint", "bi.due_back", "bi.status", "bi.borrower").
		From(instancesTableName + " bi").
		Join(booksTableName + " b on b.id = bi.book_id").
		Where(sq.Eq{"bi.book_id": bookID}).
		OrderBy(instanceOrder, "bi.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var items []model.BookInstance
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

func (r *repository) ListAuthors(ctx context.Context, page, size int) (model.ListAuthors, error) {
	total, err := r.CountAuthors(ctx)
	if err != nil {
		return model.ListAuthors{}, err
	}

	q := qb.Select("id", "first_name", "last_name", "date_of_birth", "date_of_death").
		From(authorsTableName).
		OrderBy("last_name", "first_name")

	query, args, err := paginate(q, page, size).ToSql()
	if err != nil {
		return model.ListAuthors{}, err
	}

	var authors []model.Author
	if err := r.db.SelectContext(ctx, &authors, query, args...); err != nil {
		return model.ListAuthors{}, mapErr(err)
	}

	return model.ListAuthors{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: total,
		},
		Items: authors,
	}, nil
}

func (r *repository) GetAuthor(ctx context.Context, id int64) (model.Author, error) {
	query, args, err := qb.Select("id", "first_name", "last_name", "date_of_birth", "date_of_death").
		From(authorsTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Author{}, err
	}

	var a model.Author
	if err := r.db.GetContext(ctx, &a, query, args...); err != nil {
		return model.Author{}, mapErr(err)
	}
	return a, nil
}

func (r *repository) BooksByAuthor(ctx context.Context, authorID int64) ([]model.Book, error) {
	query, args, err := qb.Select("id", "title", "author_id", "summary", "isbn").
		From(booksTableName).
		Where(sq.Eq{"author_id": authorID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return books, nil
}

func (r *repository) ListLoansForUser(ctx context.Context, username string, page, size int) (model.ListBookInstances, error) {
	where := sq.And{
		sq.Eq{"bi.borrower": username},
		sq.Eq{"bi.status": model.StatusOnLoan},
	}

	total, err := r.count(ctx, qb.Select("count(*)").
		From(instancesTableName+" bi").
		Where(where))
	if err != nil {
		return model.ListBookInstances{}, err
	}

	q := qb.Select("bi.id", "bi.book_id", "b.title as book_title", "bi.imprint", "bi.due_back", "bi.status", "bi.borrower").
		From(instancesTableName + " bi").
		Join(booksTableName + " b on b.id = bi.book_id").
		Where(where).
		OrderBy(instanceOrder, "bi.id")

	query, args, err := paginate(q, page, size).ToSql()
	if err != nil {
		return model.ListBookInstances{}, err
	}
	r.log.Debug("ListLoansForUser", zap.String("query", query), zap.Any("args", args))

	var items []model.BookInstance
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return model.ListBookInstances{}, mapErr(err)
	}

	return model.ListBookInstances{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: total,
		},
		Items: items,
	}, nil
}

func (r *repository) ListGenres(ctx context.Context) ([]model.Genre, error) {
	query, args, err := qb.Select("id", "name").
		From(genresTableName).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var genres []model.Genre
	if err := r.db.SelectContext(ctx, &genres, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return genres, nil
}

func (r *repository) CreateGenre(ctx context.Context, name string) (model.Genre, error) {
	query, args, err := qb.Insert(genresTableName).
		Columns("name").
		Values(name).
		Suffix("returning id, name").
		ToSql()
	if err != nil {
		return model.Genre{}, err
	}

	var g model.Genre
	if err := r.db.GetContext(ctx, &g, query, args...); err != nil {
		return model.Genre{}, mapErr(err)
	}
	return g, nil
}

func (r *repository) UpdateGenre(ctx context.Context, id int64, name string) (model.Genre, error) {
	query, args, err := qb.Update(genresTableName).
		Set("name", name).
		Where(sq.Eq{"id": id}).
		Suffix("returning id, name").
		ToSql()
	if err != nil {
		return model.Genre{}, err
	}

	var g model.Genre
	if err := r.db.GetContext(ctx, &g, query, args...); err != nil {
		return model.Genre{}, mapErr(err)
	}
	return g, nil
}

func (r *repository) DeleteGenre(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, genresTableName, sq.Eq{"id": id})
}

func (r *repository) CreateAuthor(ctx context.Context, a model.Author) (model.Author, error) {
	query, args, err := qb.Insert(authorsTableName).
		Columns("first_name", "last_name", "date_of_birth", "date_of_death").
		Values(a.FirstName, a.LastName, a.DateOfBirth, a.DateOfDeath).
		Suffix("returning id, first_name, last_name, date_of_birth, date_of_death").
		ToSql()
	if err != nil {
		return model.Author{}, err
	}

	var res model.Author
	if err := r.db.GetContext(ctx, &res, query, args...); err != nil {
		return model.Author{}, mapErr(err)
	}
	return res, nil
}

func (r *repository) UpdateAuthor(ctx context.Context, a model.Author) (model.Author, error) {
	query, args, err := qb.Update(authorsTableName).
		Set("first_name", a.FirstName).
		Set("last_name", a.LastName).
		Set("date_of_birth", a.DateOfBirth).
		Set("date_of_death", a.DateOfDeath).
		Where(sq.Eq{"id": a.ID}).
		Suffix("returning id, first_name, last_name, date_of_birth, date_of_death").
		ToSql()
	if err != nil {
		return model.Author{}, err
	}

	var res model.Author
	if err := r.db.GetContext(ctx, &res, query, args...); err != nil {
		return model.Author{}, mapErr(err)
	}
	return res, nil
}

// DeleteAuthor relies on the FK set-null action: books referencing the
// author stay and lose their author reference.
func (r *repository) DeleteAuthor(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, authorsTableName, sq.Eq{"id": id})
}

func (r *repository) CreateBook(ctx context.Context, b model.Book, genreIDs []int64) (model.Book, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Book{}, mapErr(err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := qb.Insert(booksTableName).
		Columns("title", "author_id", "summary", "isbn").
		Values(b.Title, b.AuthorID, b.Summary, b.ISBN).
		Suffix("returning id, title, author_id, summary, isbn").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var res model.Book
	if err := tx.GetContext(ctx, &res, query, args...); err != nil {
		if isPgErr(err, pgerrcode.UniqueViolation) {
			return model.Book{}, errs.ErrDuplicateISBN
		}
		r.log.Error("CreateBook", zap.String("q", query), zap.Any("args", args))
		return model.Book{}, mapErr(err)
	}

	if err := setBookGenres(ctx, tx, res.ID, genreIDs); err != nil {
		return model.Book{}, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Book{}, mapErr(err)
	}

	return r.GetBook(ctx, res.ID)
}

func (r *repository) UpdateBook(ctx context.Context, b model.Book, genreIDs []int64) (model.Book, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Book{}, mapErr(err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := qb.Update(booksTableName).
		Set("title", b.Title).
		Set("author_id", b.AuthorID).
		Set("summary", b.Summary).
		Set("isbn", b.ISBN).
		Where(sq.Eq{"id": b.ID}).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var id int64
	if err := tx.GetContext(ctx, &id, query, args...); err != nil {
		if isPgErr(err, pgerrcode.UniqueViolation) {
			return model.Book{}, errs.ErrDuplicateISBN
		}
		return model.Book{}, mapErr(err)
	}

	if genreIDs != nil {
		if _, err := tx.ExecContext(ctx, `delete from book_genres where book_id = $1`, id); err != nil {
			return model.Book{}, mapErr(err)
		}
		if err := setBookGenres(ctx, tx, id, genreIDs); err != nil {
			return model.Book{}, mapErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Book{}, mapErr(err)
	}

	return r.GetBook(ctx, id)
}

func setBookGenres(ctx context.Context, tx *sqlx.Tx, bookID int64, genreIDs []int64) error {
	if len(genreIDs) == 0 {
		return nil
	}
	ins := qb.Insert(bookGenresTableName).Columns("book_id", "genre_id")
	for _, gid := range genreIDs {
		ins = ins.Values(bookID, gid)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// DeleteBook is restricted while copies reference the book: the FK
// restrict action surfaces as ErrBookHasInstances.
func (r *repository) DeleteBook(ctx context.Context, id int64) error {
	query, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isPgErr(err, pgerrcode.ForeignKeyViolation, pgerrcode.RestrictViolation) {
			return errs.ErrBookHasInstances
		}
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) GetInstance(ctx context.Context, id uuid.UUID) (model.BookInstance, error) {
	query, args, err := qb.Select("bi.id", "bi.book_id", "b.title as book_title", "bi.imprint", "bi.due_back", "bi.status", "bi.borrower").
		From(instancesTableName + " bi").
		Join(booksTableName + " b on b.id = bi.book_id").
		Where(sq.Eq{"bi.id": id}).
		ToSql()
	if err != nil {
		return model.BookInstance{}, err
	}

	var bi model.BookInstance
	if err := r.db.GetContext(ctx, &bi, query, args...); err != nil {
		return model.BookInstance{}, mapErr(err)
	}
	return bi, nil
}

func (r *repository) ListInstances(ctx context.Context, filter model.InstanceFilter, page, size int) (model.ListBookInstances, error) {
	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"bi.status": filter.Status})
	}
	if filter.DueBefore != nil {
		where = append(where, sq.Lt{"bi.due_back": *filter.DueBefore})
	}

	countQ := qb.Select("count(*)").From(instancesTableName + " bi")
	if len(where) > 0 {
		countQ = countQ.Where(where)
	}
	total, err := r.count(ctx, countQ)
	if err != nil {
		return model.ListBookInstances{}, err
	}

	q := qb.Select("bi.id", "bi.book_id", "b.title as book_title", "bi.imprint", "bi.due_back", "bi.status", "bi.borrower").
		From(instancesTableName + " bi").
		Join(booksTableName + " b on b.id = bi.book_id").
		OrderBy(instanceOrder, "bi.id")
	if len(where) > 0 {
		q = q.Where(where)
	}

	query, args, err := paginate(q, page, size).ToSql()
	if err != nil {
		return model.ListBookInstances{}, err
	}

	var items []model.BookInstance
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return model.ListBookInstances{}, mapErr(err)
	}

	return model.ListBookInstances{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: total,
		},
		Items: items,
	}, nil
}

func (r *repository) CreateInstance(ctx context.Context, bi model.BookInstance) (model.BookInstance, error) {
	query, args, err := qb.Insert(instancesTableName).
		Columns("id", "book_id", "imprint", "due_back", "status", "borrower").
		Values(uuid.New(), bi.BookID, bi.Imprint, bi.DueBack, bi.Status, bi.Borrower).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.BookInstance{}, err
	}

	var id uuid.UUID
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if isPgErr(err, pgerrcode.ForeignKeyViolation) {
			return model.BookInstance{}, errs.ErrNotFound
		}
		r.log.Error("CreateInstance", zap.String("q", query), zap.Any("args", args))
		return model.BookInstance{}, mapErr(err)
	}
	return r.GetInstance(ctx, id)
}

func (r *repository) UpdateInstance(ctx context.Context, bi model.BookInstance) (model.BookInstance, error) {
	query, args, err := qb.Update(instancesTableName).
		Set("book_id", bi.BookID).
		Set("imprint", bi.Imprint).
		Set("due_back", bi.DueBack).
		Set("status", bi.Status).
		Set("borrower", bi.Borrower).
		Where(sq.Eq{"id": bi.ID}).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.BookInstance{}, err
	}

	var id uuid.UUID
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if isPgErr(err, pgerrcode.ForeignKeyViolation) {
			return model.BookInstance{}, errs.ErrNotFound
		}
		return model.BookInstance{}, mapErr(err)
	}
	return r.GetInstance(ctx, id)
}

func (r *repository) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, instancesTableName, sq.Eq{"id": id})
}

func (r *repository) deleteByID(ctx context.Context, table string, pred sq.Eq) error {
	query, args, err := qb.Delete(table).Where(pred).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return errs.ErrNotFound
	}
	return nil
}
