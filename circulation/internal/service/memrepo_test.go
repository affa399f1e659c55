package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
)

// memRepo keeps the tables in maps and enforces the same uniqueness and version
// checks as the Postgres schema. WithTx works on a copy that replaces the live
// state only on success.
type memRepo struct {
	mu   *sync.Mutex
	st   *memState
	inTx bool
}

type memState struct {
	seq     int
	books   map[int]model.Book
	patrons map[int]model.Patron
	loans   []model.Loan
	holds   []model.Hold
	rules   []model.CirculationRule
	txs     []model.Transaction
	config  *model.SystemConfiguration
}

var _ repository.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		mu: &sync.Mutex{},
		st: &memState{
			books:   map[int]model.Book{},
			patrons: map[int]model.Patron{},
		},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:     s.seq,
		books:   make(map[int]model.Book, len(s.books)),
		patrons: make(map[int]model.Patron, len(s.patrons)),
		loans:   append([]model.Loan(nil), s.loans...),
		holds:   append([]model.Hold(nil), s.holds...),
		rules:   append([]model.CirculationRule(nil), s.rules...),
		txs:     append([]model.Transaction(nil), s.txs...),
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.patrons {
		c.patrons[k] = v
	}
	if s.config != nil {
		cfg := *s.config
		c.config = &cfg
	}
	return c
}

func (s *memState) nextID() int {
	s.seq++
	return s.seq
}

// seeding helpers

func (r *memRepo) addBook(b model.Book) model.Book {
	b.ID = r.st.nextID()
	if b.Status == "" {
		b.Status = model.StatusAvailable
	}
	if b.MaterialType == "" {
		b.MaterialType = model.MaterialRegular
	}
	r.st.books[b.ID] = b
	return b
}

func (r *memRepo) addPatron(p model.Patron) model.Patron {
	p.ID = r.st.nextID()
	if p.PatronGroup == "" {
		p.PatronGroup = model.GroupStudent
	}
	r.st.patrons[p.ID] = p
	return p
}

func (r *memRepo) addRule(rule model.CirculationRule) {
	rule.ID = r.st.nextID()
	r.st.rules = append(r.st.rules, rule)
}

func (r *memRepo) addLoan(book model.Book, patron model.Patron, issuedAt, due time.Time) {
	r.st.loans = append(r.st.loans, model.Loan{
		ID: r.st.nextID(), LoanUid: uuid.NewString(), BookID: book.ID, PatronID: patron.ID, IssuedAt: issuedAt, DueDate: due,
	})
}

func (r *memRepo) addHold(book model.Book, patron model.Patron, createdAt time.Time, active bool) {
	h := model.Hold{
		ID: r.st.nextID(), HoldUid: uuid.NewString(), BookID: book.ID, PatronID: patron.ID, CreatedAt: createdAt, IsActive: active,
	}
	if active {
		exp := createdAt.Add(model.HoldTTL)
		h.ExpiresAt = &exp
	}
	r.st.holds = append(r.st.holds, h)
}

func (r *memRepo) book(id int) model.Book     { return r.st.books[id] }
func (r *memRepo) patron(id int) model.Patron { return r.st.patrons[id] }

func (r *memRepo) openLoans(bookID int) []model.Loan {
	var out []model.Loan
	for _, l := range r.st.loans {
		if l.BookID == bookID && l.ReturnedAt == nil {
			out = append(out, l)
		}
	}
	return out
}

func (r *memRepo) holdsOf(bookID int, active bool) []model.Hold {
	var out []model.Hold
	for _, h := range r.st.holds {
		if h.BookID == bookID && h.IsActive == active {
			out = append(out, h)
		}
	}
	return out
}

// repository.Repository

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	work := &memRepo{mu: r.mu, st: r.st.clone(), inTx: true}
	if err := fn(ctx, work); err != nil {
		return err
	}
	*r.st = *work.st
	return nil
}

func (r *memRepo) GetPatron(_ context.Context, studentID string) (model.Patron, error) {
	for _, p := range r.st.patrons {
		if p.StudentID == studentID {
			return p, nil
		}
	}
	return model.Patron{}, errs.ErrNotFound
}

func (r *memRepo) GetPatronByID(_ context.Context, id int) (model.Patron, error) {
	p, ok := r.st.patrons[id]
	if !ok {
		return model.Patron{}, errs.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) SavePatron(_ context.Context, patron *model.Patron) error {
	cur, ok := r.st.patrons[patron.ID]
	if !ok || cur.Version != patron.Version {
		return errs.ErrConflict
	}
	patron.Version++
	r.st.patrons[patron.ID] = *patron
	return nil
}

func (r *memRepo) GetBook(_ context.Context, barcode string) (model.Book, error) {
	for _, b := range r.st.books {
		if b.Barcode == barcode {
			return b, nil
		}
	}
	return model.Book{}, errs.ErrNotFound
}

func (r *memRepo) GetBookByIsbn(_ context.Context, isbn string) (model.Book, error) {
	for _, b := range r.st.books {
		if b.ISBN == isbn {
			return b, nil
		}
	}
	return model.Book{}, errs.ErrNotFound
}

func (r *memRepo) SaveBook(_ context.Context, book *model.Book) error {
	cur, ok := r.st.books[book.ID]
	if !ok || cur.Version != book.Version {
		return errs.ErrConflict
	}
	book.Version++
	r.st.books[book.ID] = *book
	return nil
}

func (r *memRepo) FindRule(_ context.Context, group model.PatronGroup, materialType model.MaterialType) (*model.CirculationRule, error) {
	for _, rule := range r.st.rules {
		if rule.PatronGroup == group && rule.MaterialType == materialType {
			rule := rule
			return &rule, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListRules(_ context.Context) ([]model.CirculationRule, error) {
	return append([]model.CirculationRule(nil), r.st.rules...), nil
}

func (r *memRepo) UpsertRule(_ context.Context, rule model.CirculationRule) (model.CirculationRule, error) {
	for i, cur := range r.st.rules {
		if cur.PatronGroup == rule.PatronGroup && cur.MaterialType == rule.MaterialType {
			rule.ID = cur.ID
			r.st.rules[i] = rule
			return rule, nil
		}
	}
	rule.ID = r.st.nextID()
	r.st.rules = append(r.st.rules, rule)
	return rule, nil
}

func (r *memRepo) CreateLoan(_ context.Context, book model.Book, patron model.Patron, issuedAt, dueDate time.Time) (model.Loan, error) {
	if len(r.openLoans(book.ID)) > 0 {
		return model.Loan{}, errs.ErrConflict
	}
	loan := model.Loan{
		ID:       r.st.nextID(),
		LoanUid:  uuid.NewString(),
		BookID:   book.ID,
		PatronID: patron.ID,
		IssuedAt: issuedAt,
		DueDate:  dueDate,
	}
	r.st.loans = append(r.st.loans, loan)
	return loan, nil
}

func (r *memRepo) FindOpenLoan(_ context.Context, book model.Book) (*model.Loan, error) {
	open := r.openLoans(book.ID)
	if len(open) == 0 {
		return nil, nil
	}
	return &open[0], nil
}

func (r *memRepo) CloseLoan(_ context.Context, loan *model.Loan, returnedAt time.Time) error {
	for i, l := range r.st.loans {
		if l.ID == loan.ID && l.ReturnedAt == nil {
			r.st.loans[i].ReturnedAt = &returnedAt
			loan.ReturnedAt = &returnedAt
			return nil
		}
	}
	return errs.ErrConflict
}

func (r *memRepo) CreateHold(_ context.Context, book model.Book, patron model.Patron, createdAt time.Time) (model.Hold, error) {
	for _, h := range r.st.holds {
		if h.BookID == book.ID && h.PatronID == patron.ID {
			return model.Hold{}, errs.ErrConflict
		}
	}
	hold := model.Hold{
		ID:        r.st.nextID(),
		HoldUid:   uuid.NewString(),
		BookID:    book.ID,
		PatronID:  patron.ID,
		CreatedAt: createdAt,
	}
	r.st.holds = append(r.st.holds, hold)
	return hold, nil
}

func (r *memRepo) HasHold(_ context.Context, book model.Book, patron model.Patron) (bool, error) {
	for _, h := range r.st.holds {
		if h.BookID == book.ID && h.PatronID == patron.ID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) FindActiveHold(_ context.Context, book model.Book) (*model.Hold, error) {
	active := r.holdsOf(book.ID, true)
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

func (r *memRepo) FindEarliestInactiveHold(_ context.Context, book model.Book) (*model.Hold, error) {
	queued := r.holdsOf(book.ID, false)
	if len(queued) == 0 {
		return nil, nil
	}
	sort.SliceStable(queued, func(i, j int) bool {
		if queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].ID < queued[j].ID
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	return &queued[0], nil
}

func (r *memRepo) CountInactiveHolds(_ context.Context, book model.Book) (int, error) {
	return len(r.holdsOf(book.ID, false)), nil
}

func (r *memRepo) ActivateHold(_ context.Context, hold *model.Hold, expiresAt time.Time) error {
	if len(r.holdsOf(hold.BookID, true)) > 0 {
		return errs.ErrConflict
	}
	for i, h := range r.st.holds {
		if h.ID == hold.ID && !h.IsActive {
			r.st.holds[i].IsActive = true
			r.st.holds[i].ExpiresAt = &expiresAt
			hold.IsActive = true
			hold.ExpiresAt = &expiresAt
			return nil
		}
	}
	return errs.ErrConflict
}

func (r *memRepo) DeleteHold(_ context.Context, hold model.Hold) error {
	for i, h := range r.st.holds {
		if h.ID == hold.ID {
			r.st.holds = append(r.st.holds[:i:i], r.st.holds[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memRepo) CreateTransaction(_ context.Context, tr model.Transaction) (model.Transaction, error) {
	tr.ID = r.st.nextID()
	tr.TransactionUid = uuid.NewString()
	r.st.txs = append(r.st.txs, tr)
	return tr, nil
}

func (r *memRepo) ListTransactions(_ context.Context, patron model.Patron) ([]model.Transaction, error) {
	var out []model.Transaction
	for i := len(r.st.txs) - 1; i >= 0; i-- {
		if r.st.txs[i].PatronID == patron.ID {
			out = append(out, r.st.txs[i])
		}
	}
	return out, nil
}

func (r *memRepo) GetConfig(_ context.Context) (model.SystemConfiguration, error) {
	if r.st.config == nil {
		r.st.config = &model.SystemConfiguration{ID: 1, MapData: []byte(`{}`), LastUpdated: time.Now().UTC()}
	}
	return *r.st.config, nil
}

func (r *memRepo) UpdateConfig(ctx context.Context, req model.UpdateConfigRequest) (model.SystemConfiguration, error) {
	cfg, _ := r.GetConfig(ctx)
	if req.Logo != nil {
		cfg.Logo = req.Logo
	}
	if len(req.MapData) > 0 {
		cfg.MapData = req.MapData
	}
	cfg.LastUpdated = time.Now().UTC()
	r.st.config = &cfg
	return cfg, nil
}

func fines(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
