package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
)

// Repository is the data-access collaborator of the circulation engine.
// Lookups that may legitimately find nothing return a nil pointer and no error;
// lookups of referenced entities return errs.ErrNotFound.
type Repository interface {
	// WithTx runs fn in one transaction. Books and patrons read through the
	// repository passed to fn are row-locked until commit.
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	GetPatron(ctx context.Context, studentID string) (model.Patron, error)
	GetPatronByID(ctx context.Context, id int) (model.Patron, error)
	SavePatron(ctx context.Context, patron *model.Patron) error

	GetBook(ctx context.Context, barcode string) (model.Book, error)
	GetBookByIsbn(ctx context.Context, isbn string) (model.Book, error)
	SaveBook(ctx context.Context, book *model.Book) error

	FindRule(ctx context.Context, group model.PatronGroup, materialType model.MaterialType) (*model.CirculationRule, error)
	ListRules(ctx context.Context) ([]model.CirculationRule, error)
	UpsertRule(ctx context.Context, rule model.CirculationRule) (model.CirculationRule, error)

	CreateLoan(ctx context.Context, book model.Book, patron model.Patron, issuedAt, dueDate time.Time) (model.Loan, error)
	FindOpenLoan(ctx context.Context, book model.Book) (*model.Loan, error)
	CloseLoan(ctx context.Context, loan *model.Loan, returnedAt time.Time) error

	CreateHold(ctx context.Context, book model.Book, patron model.Patron, createdAt time.Time) (model.Hold, error)
	HasHold(ctx context.Context, book model.Book, patron model.Patron) (bool, error)
	FindActiveHold(ctx context.Context, book model.Book) (*model.Hold, error)
	FindEarliestInactiveHold(ctx context.Context, book model.Book) (*model.Hold, error)
	CountInactiveHolds(ctx context.Context, book model.Book) (int, error)
	ActivateHold(ctx context.Context, hold *model.Hold, expiresAt time.Time) error
	DeleteHold(ctx context.Context, hold model.Hold) error

	CreateTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error)
	ListTransactions(ctx context.Context, patron model.Patron) ([]model.Transaction, error)

	GetConfig(ctx context.Context) (model.SystemConfiguration, error)
	UpdateConfig(ctx context.Context, req model.UpdateConfigRequest) (model.SystemConfiguration, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repository struct {
	db   *pgxpool.Pool
	q    querier
	inTx bool
	log  *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		q:   db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName        = `books`
	patronsTableName      = `patrons`
	loansTableName        = `loans`
	holdsTableName        = `holds`
	rulesTableName        = `circulation_rules`
	transactionsTableName = `transactions`

	configRowID = 1
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	bookColumns   = []string{"id", "isbn", "barcode", "title", "author", "status", "material_type", "hold_expires_at", "queue_length", "loan_count", "version"}
	patronColumns = []string{"id", "student_id", "full_name", "patron_group", "is_blocked", "fines", "version"}
	loanColumns   = []string{"id", "loan_uid", "book_id", "patron_id", "issued_at", "due_date", "returned_at"}
	holdColumns   = []string{"id", "hold_uid", "book_id", "patron_id", "created_at", "is_active", "expires_at"}
	ruleColumns   = []string{"id", "patron_group", "material_type", "loan_days", "max_items", "fine_per_day"}
	trColumns     = []string{"id", "transaction_uid", "patron_id", "amount", "type", "method", "timestamp", "librarian_id", "note", "book_title"}
)

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &repository{
			db:   r.db,
			q:    tx,
			inTx: true,
			log:  r.log,
		})
	})
	return mapErr(err)
}

// lock appends FOR UPDATE inside a transaction.
func (r *repository) lock(b sq.SelectBuilder) sq.SelectBuilder {
	if r.inTx {
		return b.Suffix("FOR UPDATE")
	}
	return b
}

func (r *repository) GetPatron(ctx context.Context, studentID string) (model.Patron, error) {
	return r.getPatron(ctx, sq.Eq{"student_id": studentID})
}

func (r *repository) GetPatronByID(ctx context.Context, id int) (model.Patron, error) {
	return r.getPatron(ctx, sq.Eq{"id": id})
}

func (r *repository) getPatron(ctx context.Context, where sq.Eq) (model.Patron, error) {
	query, args, err := r.lock(qb.Select(patronColumns...).
		From(patronsTableName).
		Where(where).
		Limit(1)).
		ToSql()
	if err != nil {
		return model.Patron{}, err
	}
	patron, err := collectOne[model.Patron](ctx, r.q, query, args)
	if err != nil {
		return model.Patron{}, errors.Wrap(err, "patron")
	}
	return patron, nil
}

func (r *repository) SavePatron(ctx context.Context, patron *model.Patron) error {
	q := `
update patrons
    set is_blocked = @is_blocked, fines = @fines, version = version + 1
where id = @id and version = @version`
	args := pgx.NamedArgs{
		"id":         patron.ID,
		"version":    patron.Version,
		"is_blocked": patron.IsBlocked,
		"fines":      patron.Fines,
	}
	if err := r.execCAS(ctx, q, args); err != nil {
		return errors.Wrapf(err, "save patron %s", patron.StudentID)
	}
	patron.Version++
	return nil
}

func (r *repository) GetBook(ctx context.Context, barcode string) (model.Book, error) {
	return r.getBook(ctx, sq.Eq{"barcode": barcode})
}

func (r *repository) GetBookByIsbn(ctx context.Context, isbn string) (model.Book, error) {
	return r.getBook(ctx, sq.Eq{"isbn": isbn})
}

func (r *repository) getBook(ctx context.Context, where sq.Eq) (model.Book, error) {
	query, args, err := r.lock(qb.Select(bookColumns...).
		From(booksTableName).
		Where(where).
		Limit(1)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	book, err := collectOne[model.Book](ctx, r.q, query, args)
	if err != nil {
		return model.Book{}, errors.Wrap(err, "book")
	}
	return book, nil
}

func (r *repository) SaveBook(ctx context.Context, book *model.Book) error {
	q := `
update books
    set status = @status,
        hold_expires_at = @hold_expires_at,
        queue_length = @queue_length,
        loan_count = @loan_count,
        version = version + 1
where id = @id and version = @version`
	args := pgx.NamedArgs{
		"id":              book.ID,
		"version":         book.Version,
		"status":          book.Status,
		"hold_expires_at": book.HoldExpiresAt,
		"queue_length":    book.QueueLength,
		"loan_count":      book.LoanCount,
	}
	if err := r.execCAS(ctx, q, args); err != nil {
		return errors.Wrapf(err, "save book %s", book.Barcode)
	}
	book.Version++
	return nil
}

func (r *repository) FindRule(ctx context.Context, group model.PatronGroup, materialType model.MaterialType) (*model.CirculationRule, error) {
	query, args, err := qb.Select(ruleColumns...).
		From(rulesTableName).
		Where(sq.Eq{"patron_group": group, "material_type": materialType}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	rule, err := collectOne[model.CirculationRule](ctx, r.q, query, args)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *repository) ListRules(ctx context.Context) ([]model.CirculationRule, error) {
	query, args, err := qb.Select(ruleColumns...).
		From(rulesTableName).
		OrderBy("patron_group", "material_type").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.CirculationRule])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows")
	}
	return rules, nil
}

func (r *repository) UpsertRule(ctx context.Context, rule model.CirculationRule) (model.CirculationRule, error) {
	query, args, err := qb.Insert(rulesTableName).
		Columns("patron_group", "material_type", "loan_days", "max_items", "fine_per_day").
		Values(rule.PatronGroup, rule.MaterialType, rule.LoanDays, rule.MaxItems, rule.FinePerDay).
		Suffix(`on conflict (patron_group, material_type) do update
	set loan_days = excluded.loan_days, max_items = excluded.max_items, fine_per_day = excluded.fine_per_day
	returning ` + columns(ruleColumns)).
		ToSql()
	if err != nil {
		return model.CirculationRule{}, err
	}
	return collectOne[model.CirculationRule](ctx, r.q, query, args)
}

func (r *repository) CreateLoan(ctx context.Context, book model.Book, patron model.Patron, issuedAt, dueDate time.Time) (model.Loan, error) {
	query, args, err := qb.Insert(loansTableName).
		Columns("loan_uid", "book_id", "patron_id", "issued_at", "due_date").
		Values(uuid.New(), book.ID, patron.ID, issuedAt, dueDate).
		Suffix("returning " + columns(loanColumns)).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	loan, err := collectOne[model.Loan](ctx, r.q, query, args)
	if err != nil {
		r.log.Error("CreateLoan", zap.String("barcode", book.Barcode), zap.Error(err))
		return model.Loan{}, errors.Wrapf(err, "create loan %s", book.Barcode)
	}
	return loan, nil
}

func (r *repository) FindOpenLoan(ctx context.Context, book model.Book) (*model.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"book_id": book.ID, "returned_at": nil}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return collectOptional[model.Loan](ctx, r.q, query, args)
}

func (r *repository) CloseLoan(ctx context.Context, loan *model.Loan, returnedAt time.Time) error {
	q := `
update loans
    set returned_at = @returned_at
where id = @id and returned_at is null`
	args := pgx.NamedArgs{
		"id":          loan.ID,
		"returned_at": returnedAt,
	}
	if err := r.execCAS(ctx, q, args); err != nil {
		return errors.Wrapf(err, "close loan %s", loan.LoanUid)
	}
	loan.ReturnedAt = &returnedAt
	return nil
}

func (r *repository) CreateHold(ctx context.Context, book model.Book, patron model.Patron, createdAt time.Time) (model.Hold, error) {
	query, args, err := qb.Insert(holdsTableName).
		Columns("hold_uid", "book_id", "patron_id", "created_at", "is_active").
		Values(uuid.New(), book.ID, patron.ID, createdAt, false).
		Suffix("returning " + columns(holdColumns)).
		ToSql()
	if err != nil {
		return model.Hold{}, err
	}
	return collectOne[model.Hold](ctx, r.q, query, args)
}

func (r *repository) HasHold(ctx context.Context, book model.Book, patron model.Patron) (bool, error) {
	q := `select exists(select 1 from holds where book_id = $1 and patron_id = $2)`
	var exists bool
	if err := r.q.QueryRow(ctx, q, book.ID, patron.ID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) FindActiveHold(ctx context.Context, book model.Book) (*model.Hold, error) {
	query, args, err := qb.Select(holdColumns...).
		From(holdsTableName).
		Where(sq.Eq{"book_id": book.ID, "is_active": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return collectOptional[model.Hold](ctx, r.q, query, args)
}

func (r *repository) FindEarliestInactiveHold(ctx context.Context, book model.Book) (*model.Hold, error) {
	query, args, err := qb.Select(holdColumns...).
		From(holdsTableName).
		Where(sq.Eq{"book_id": book.ID, "is_active": false}).
		OrderBy("created_at", "id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return collectOptional[model.Hold](ctx, r.q, query, args)
}

func (r *repository) CountInactiveHolds(ctx context.Context, book model.Book) (int, error) {
	q := `select count(*) from holds where book_id = $1 and is_active = false`
	var count int
	if err := r.q.QueryRow(ctx, q, book.ID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) ActivateHold(ctx context.Context, hold *model.Hold, expiresAt time.Time) error {
	q := `
update holds
    set is_active = true, expires_at = @expires_at
where id = @id and is_active = false`
	args := pgx.NamedArgs{
		"id":         hold.ID,
		"expires_at": expiresAt,
	}
	if err := r.execCAS(ctx, q, args); err != nil {
		return errors.Wrapf(err, "activate hold %s", hold.HoldUid)
	}
	hold.IsActive = true
	hold.ExpiresAt = &expiresAt
	return nil
}

func (r *repository) DeleteHold(ctx context.Context, hold model.Hold) error {
	_, err := r.q.Exec(ctx, `delete from holds where id = $1`, hold.ID)
	return mapErr(err)
}

func (r *repository) CreateTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	query, args, err := qb.Insert(transactionsTableName).
		Columns("transaction_uid", "patron_id", "amount", "type", "method", "timestamp", "librarian_id", "note", "book_title").
		Values(uuid.New(), tr.PatronID, tr.Amount, tr.Type, tr.Method, tr.Timestamp, tr.LibrarianID, tr.Note, tr.BookTitle).
		Suffix("returning " + columns(trColumns)).
		ToSql()
	if err != nil {
		return model.Transaction{}, err
	}
	return collectOne[model.Transaction](ctx, r.q, query, args)
}

func (r *repository) ListTransactions(ctx context.Context, patron model.Patron) ([]model.Transaction, error) {
	query, args, err := qb.Select(trColumns...).
		From(transactionsTableName).
		Where(sq.Eq{"patron_id": patron.ID}).
		OrderBy("timestamp desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Transaction])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows")
	}
	return items, nil
}

// GetConfig returns the singleton configuration row, creating it on first access.
func (r *repository) GetConfig(ctx context.Context) (model.SystemConfiguration, error) {
	q := `
insert into system_configuration (id) values ($1)
on conflict (id) do update set id = excluded.id
returning id, logo, map_data, last_updated`
	return collectOne[model.SystemConfiguration](ctx, r.q, q, []any{configRowID})
}

func (r *repository) UpdateConfig(ctx context.Context, req model.UpdateConfigRequest) (model.SystemConfiguration, error) {
	q := `
insert into system_configuration (id, logo, map_data, last_updated)
values (@id, @logo, coalesce(@map_data::jsonb, '{}'::jsonb), now())
on conflict (id) do update
    set logo = coalesce(excluded.logo, system_configuration.logo),
        map_data = coalesce(@map_data::jsonb, system_configuration.map_data),
        last_updated = now()
returning id, logo, map_data, last_updated`
	var mapData any
	if len(req.MapData) > 0 {
		mapData = string(req.MapData)
	}
	args := pgx.NamedArgs{
		"id":       configRowID,
		"logo":     req.Logo,
		"map_data": mapData,
	}
	return collectOne[model.SystemConfiguration](ctx, r.q, q, []any{args})
}

func (r *repository) execCAS(ctx context.Context, q string, args pgx.NamedArgs) error {
	tag, err := r.q.Exec(ctx, q, args)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

func collectOne[T any](ctx context.Context, q querier, query string, args []any) (T, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, mapErr(err)
	}
	defer rows.Close()

	item, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		var zero T
		return zero, mapErr(err)
	}
	return item, nil
}

func collectOptional[T any](ctx context.Context, q querier, query string, args []any) (*T, error) {
	item, err := collectOne[T](ctx, q, query, args)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// mapErr translates driver errors into errs sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return errors.Wrap(errs.ErrConflict, pgErr.Message)
		}
	}
	return err
}

func columns(cols []string) string {
	return strings.Join(cols, ", ")
}
