package service

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
)

type EventPublisher interface {
	Publish(event kafka.EventCirculation) error
}

// MetadataLookup queries an external catalog. A miss and a failure look the same.
type MetadataLookup interface {
	Lookup(ctx context.Context, isbn string) (*model.BookMetadata, bool)
}

type Service struct {
	log       *zap.Logger
	repo      repository.Repository
	publisher EventPublisher
	lookup    MetadataLookup
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(s *Service)

const tracerName = "circulation/engine"

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo repository.Repository, publisher EventPublisher, lookup MetadataLookup, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:       log.Named("engine"),
		repo:      repo,
		publisher: publisher,
		lookup:    lookup,
		tracer:    otel.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout issues loans for each barcode in order, one transaction per item.
// Per-item problems are collected into the result; only an unknown or blocked
// patron fails the whole call.
func (s *Service) Checkout(ctx context.Context, req model.CheckoutRequest) (model.CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.checkout",
		trace.WithAttributes(
			attribute.String("patron.id", req.PatronID),
			attribute.Int("barcode.count", len(req.Barcodes)),
		),
	)
	defer span.End()

	if len(req.Barcodes) == 0 {
		return model.CheckoutResult{}, errs.ErrEmptyBarcodes
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		patron, err := repo.GetPatron(ctx, req.PatronID)
		if err != nil {
			return errors.Wrapf(err, "patron %s", req.PatronID)
		}
		if patron.IsBlocked {
			return errors.Wrapf(errs.ErrForbidden, "patron %s", req.PatronID)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return model.CheckoutResult{}, err
	}

	now := s.now()
	res := model.CheckoutResult{Errors: []string{}}
	for _, barcode := range req.Barcodes {
		var (
			loan    model.Loan
			itemErr string
		)
		err = s.repo.WithTx(ctx, func(ctx context.Context, repo repository.Repository) error {
			var err error
			loan, itemErr, err = s.checkoutItem(ctx, repo, req.PatronID, barcode, now)
			return err
		})
		if err != nil {
			s.log.Error("checkout item", zap.String("barcode", barcode), zap.Error(err))
			span.RecordError(err)
			itemErr = fmt.Sprintf("%s: %s", barcode, errors.Cause(err))
		}
		if itemErr != "" {
			res.Errors = append(res.Errors, itemErr)
			continue
		}
		res.Processed++
		s.publish(kafka.EventCirculation{
			EventType: kafka.EventBookCheckedOut,
			Timestamp: now,
			Barcode:   barcode,
			PatronID:  req.PatronID,
			DueDate:   loan.DueDate,
		})
	}

	res.Success = true
	res.Message = fmt.Sprintf("%d of %d items checked out", res.Processed, len(req.Barcodes))
	span.SetAttributes(attribute.Int("checkout.processed", res.Processed))
	return res, nil
}

// checkoutItem returns a non-empty item error when the barcode is skipped.
// The book row is locked before the patron row, as in ReturnBook.
func (s *Service) checkoutItem(ctx context.Context, repo repository.Repository, studentID, barcode string, now time.Time) (model.Loan, string, error) {
	book, err := repo.GetBook(ctx, barcode)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Loan{}, "barcode not found", nil
		}
		return model.Loan{}, "", err
	}
	patron, err := repo.GetPatron(ctx, studentID)
	if err != nil {
		return model.Loan{}, "", err
	}
	if patron.IsBlocked {
		// blocked by a return that committed after the batch started
		return model.Loan{}, fmt.Sprintf("%s: %s", book.Title, errs.ErrForbidden), nil
	}
	rule, err := repo.FindRule(ctx, patron.PatronGroup, book.MaterialType)
	if err != nil {
		return model.Loan{}, "", err
	}
	loanDays, _ := model.Terms(rule)

	unavailable := fmt.Sprintf("%s: status %s", book.Title, book.Status)
	ev := model.EventCheckout
	switch book.Status {
	case model.StatusAvailable:
	case model.StatusHeld:
		hold, err := repo.FindActiveHold(ctx, book)
		if err != nil {
			return model.Loan{}, "", err
		}
		if hold == nil || hold.PatronID != patron.ID {
			return model.Loan{}, unavailable, nil
		}
		if err = repo.DeleteHold(ctx, *hold); err != nil {
			return model.Loan{}, "", err
		}
		book.HoldExpiresAt = nil
		ev = model.EventClaim
	default:
		return model.Loan{}, unavailable, nil
	}

	if err = book.Apply(ev); err != nil {
		return model.Loan{}, "", err
	}
	loan, err := repo.CreateLoan(ctx, book, patron, now, now.Add(time.Duration(loanDays)*24*time.Hour))
	if err != nil {
		return model.Loan{}, "", err
	}
	book.LoanCount++
	if err = repo.SaveBook(ctx, &book); err != nil {
		return model.Loan{}, "", err
	}
	return loan, "", nil
}

// ReturnBook closes the open loan, assesses any overdue fine and hands the book
// to the next patron in the hold queue. A book without an open loan still goes
// through hold promotion.
func (s *Service) ReturnBook(ctx context.Context, barcode, staffID string) (model.ReturnResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("book.barcode", barcode)),
	)
	defer span.End()

	now := s.now()
	var (
		res    model.ReturnResult
		events []kafka.EventCirculation
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		res = model.ReturnResult{}
		events = events[:0]

		book, err := repo.GetBook(ctx, barcode)
		if err != nil {
			return errors.Wrapf(err, "book %s", barcode)
		}

		fine := decimal.Zero
		loan, err := repo.FindOpenLoan(ctx, book)
		if err != nil {
			return err
		}
		if loan != nil {
			if err = repo.CloseLoan(ctx, loan, now); err != nil {
				return err
			}
			patron, err := repo.GetPatronByID(ctx, loan.PatronID)
			if err != nil {
				return err
			}
			events = append(events, kafka.EventCirculation{
				EventType: kafka.EventBookReturned,
				Timestamp: now,
				Barcode:   barcode,
				PatronID:  patron.StudentID,
				DueDate:   loan.DueDate,
			})

			res.DaysOverdue = daysOverdue(loan.DueDate, now)
			if res.DaysOverdue > 0 {
				fine, err = s.assessFine(ctx, repo, &patron, book, res.DaysOverdue, now, staffID)
				if err != nil {
					return err
				}
				events = append(events, kafka.EventCirculation{
					EventType: kafka.EventFineAssessed,
					Timestamp: now,
					Barcode:   barcode,
					PatronID:  patron.StudentID,
					Amount:    fine.StringFixed(2),
					DaysOver:  res.DaysOverdue,
				})
			}
		}

		next, err := s.promoteHold(ctx, repo, &book, now)
		if err != nil {
			return err
		}
		if next != nil {
			view := model.NewPatronView(*next)
			res.NextPatron = &view
			events = append(events, kafka.EventCirculation{
				EventType: kafka.EventHoldPromoted,
				Timestamp: now,
				Barcode:   barcode,
				PatronID:  next.StudentID,
			})
		}

		res.Success = true
		res.FineAmount = model.Money(fine)
		res.Book = book
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return model.ReturnResult{}, err
	}

	span.SetAttributes(
		attribute.Int("return.days_overdue", res.DaysOverdue),
		attribute.String("return.fine", res.FineAmount.String()),
		attribute.Bool("return.promoted", res.NextPatron != nil),
	)
	s.publish(events...)
	return res, nil
}

func daysOverdue(due, returned time.Time) int {
	if !due.Before(returned) {
		return 0
	}
	return int(returned.Sub(due) / (24 * time.Hour))
}

func (s *Service) assessFine(ctx context.Context, repo repository.Repository, patron *model.Patron, book model.Book, days int, now time.Time, staffID string) (decimal.Decimal, error) {
	rule, err := repo.FindRule(ctx, patron.PatronGroup, book.MaterialType)
	if err != nil {
		return decimal.Zero, err
	}
	_, finePerDay := model.Terms(rule)
	fine := finePerDay.Mul(decimal.NewFromInt(int64(days))).Round(2)

	patron.AssessFine(fine)
	if err = repo.SavePatron(ctx, patron); err != nil {
		return decimal.Zero, err
	}
	if !fine.IsPositive() {
		return fine, nil
	}
	_, err = repo.CreateTransaction(ctx, model.Transaction{
		PatronID:    patron.ID,
		Amount:      fine,
		Type:        model.TransactionFineAssessment,
		Method:      model.MethodSystem,
		Timestamp:   now,
		LibrarianID: staffID,
		Note:        fmt.Sprintf("%d days overdue", days),
		BookTitle:   book.Title,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return fine, nil
}

// promoteHold settles the book after a return. It returns the patron whose hold
// was activated, if any.
func (s *Service) promoteHold(ctx context.Context, repo repository.Repository, book *model.Book, now time.Time) (*model.Patron, error) {
	active, err := repo.FindActiveHold(ctx, *book)
	if err != nil {
		return nil, err
	}
	if active != nil {
		// still reserved; a second active hold is never created
		if err = book.Apply(model.EventPromote); err != nil {
			return nil, err
		}
		book.HoldExpiresAt = active.ExpiresAt
		return nil, s.saveQueue(ctx, repo, book)
	}

	hold, err := repo.FindEarliestInactiveHold(ctx, *book)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		if err = book.Apply(model.EventRelease); err != nil {
			return nil, err
		}
		book.HoldExpiresAt = nil
		book.QueueLength = 0
		return nil, repo.SaveBook(ctx, book)
	}

	expiresAt := now.Add(model.HoldTTL)
	if err = repo.ActivateHold(ctx, hold, expiresAt); err != nil {
		return nil, err
	}
	if err = book.Apply(model.EventPromote); err != nil {
		return nil, err
	}
	book.HoldExpiresAt = &expiresAt
	if err = s.saveQueue(ctx, repo, book); err != nil {
		return nil, err
	}
	patron, err := repo.GetPatronByID(ctx, hold.PatronID)
	if err != nil {
		return nil, err
	}
	return &patron, nil
}

func (s *Service) saveQueue(ctx context.Context, repo repository.Repository, book *model.Book) error {
	count, err := repo.CountInactiveHolds(ctx, *book)
	if err != nil {
		return err
	}
	book.QueueLength = count
	return repo.SaveBook(ctx, book)
}

// PlaceHold queues patron for the book. A shelved book with an empty queue is
// reserved for the patron straight away.
func (s *Service) PlaceHold(ctx context.Context, req model.PlaceHoldRequest) (model.PlaceHoldResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.place_hold",
		trace.WithAttributes(
			attribute.String("book.barcode", req.Barcode),
			attribute.String("patron.id", req.PatronID),
		),
	)
	defer span.End()

	now := s.now()
	var (
		res    model.PlaceHoldResult
		events []kafka.EventCirculation
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo repository.Repository) error {
		events = events[:0]

		book, err := repo.GetBook(ctx, req.Barcode)
		if err != nil {
			return errors.Wrapf(err, "book %s", req.Barcode)
		}
		patron, err := repo.GetPatron(ctx, req.PatronID)
		if err != nil {
			return errors.Wrapf(err, "patron %s", req.PatronID)
		}
		if patron.IsBlocked {
			return errors.Wrapf(errs.ErrForbidden, "patron %s", req.PatronID)
		}
		exists, err := repo.HasHold(ctx, book, patron)
		if err != nil {
			return err
		}
		if exists {
			return errors.Wrapf(errs.ErrDuplicateHold, "%s for %s", req.Barcode, req.PatronID)
		}
		queued, err := repo.CountInactiveHolds(ctx, book)
		if err != nil {
			return err
		}

		hold, err := repo.CreateHold(ctx, book, patron, now)
		if err != nil {
			return err
		}
		events = append(events, kafka.EventCirculation{
			EventType: kafka.EventHoldPlaced,
			Timestamp: now,
			Barcode:   book.Barcode,
			PatronID:  patron.StudentID,
		})

		if book.Status == model.StatusAvailable && queued == 0 {
			expiresAt := now.Add(model.HoldTTL)
			if err = repo.ActivateHold(ctx, &hold, expiresAt); err != nil {
				return err
			}
			if err = book.Apply(model.EventPromote); err != nil {
				return err
			}
			book.HoldExpiresAt = &expiresAt
			events = append(events, kafka.EventCirculation{
				EventType: kafka.EventHoldPromoted,
				Timestamp: now,
				Barcode:   book.Barcode,
				PatronID:  patron.StudentID,
			})
		}
		if err = s.saveQueue(ctx, repo, &book); err != nil {
			return err
		}
		res = model.PlaceHoldResult{Hold: hold, Book: book}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return model.PlaceHoldResult{}, err
	}

	s.publish(events...)
	return res, nil
}

func (s *Service) publish(events ...kafka.EventCirculation) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := s.publisher.Publish(ev); err != nil {
			s.log.Warn("publish event",
				zap.String("type", string(ev.EventType)),
				zap.String("barcode", ev.Barcode),
				zap.Error(err))
		}
	}
}

func (s *Service) GetBook(ctx context.Context, barcode string) (model.Book, error) {
	book, err := s.repo.GetBook(ctx, barcode)
	if err != nil {
		return model.Book{}, errors.Wrapf(err, "book %s", barcode)
	}
	return book, nil
}

func (s *Service) GetPatron(ctx context.Context, studentID string) (model.PatronView, error) {
	patron, err := s.repo.GetPatron(ctx, studentID)
	if err != nil {
		return model.PatronView{}, errors.Wrapf(err, "patron %s", studentID)
	}
	return model.NewPatronView(patron), nil
}

func (s *Service) ListTransactions(ctx context.Context, studentID string) ([]model.Transaction, error) {
	patron, err := s.repo.GetPatron(ctx, studentID)
	if err != nil {
		return nil, errors.Wrapf(err, "patron %s", studentID)
	}
	items, err := s.repo.ListTransactions(ctx, patron)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Transaction{}
	}
	return items, nil
}

const (
	statusFound    = "FOUND"
	statusNotFound = "NOT_FOUND"
)

// WaterfallSearch looks the ISBN up in the local catalog first and falls back to
// the external metadata source.
func (s *Service) WaterfallSearch(ctx context.Context, isbn string) (model.WaterfallResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.waterfall",
		trace.WithAttributes(attribute.String("book.isbn", isbn)),
	)
	defer span.End()

	book, err := s.repo.GetBookByIsbn(ctx, isbn)
	switch {
	case err == nil:
		return model.WaterfallResult{Source: model.SourceLocal, Status: statusFound, Book: &book}, nil
	case !errors.Is(err, errs.ErrNotFound):
		return model.WaterfallResult{}, err
	}

	if s.lookup != nil {
		if data, ok := s.lookup.Lookup(ctx, isbn); ok {
			return model.WaterfallResult{Source: model.SourceExternal, Status: statusFound, Data: data}, nil
		}
	}
	return model.WaterfallResult{Source: model.SourceAll, Status: statusNotFound}, nil
}

func (s *Service) ListRules(ctx context.Context) ([]model.CirculationRule, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []model.CirculationRule{}
	}
	return rules, nil
}

func (s *Service) UpsertRule(ctx context.Context, rule model.CirculationRule) (model.CirculationRule, error) {
	if rule.LoanDays < 0 || rule.FinePerDay.IsNegative() {
		return model.CirculationRule{}, errors.Wrap(errs.ErrInvalidArgument, "loanDays and finePerDay must not be negative")
	}
	rule.FinePerDay = rule.FinePerDay.Round(2)
	return s.repo.UpsertRule(ctx, rule)
}

func (s *Service) GetConfig(ctx context.Context) (model.SystemConfiguration, error) {
	return s.repo.GetConfig(ctx)
}

func (s *Service) UpdateConfig(ctx context.Context, req model.UpdateConfigRequest) (model.SystemConfiguration, error) {
	if len(req.MapData) > 0 && !jsoniter.Valid(req.MapData) {
		return model.SystemConfiguration{}, errors.Wrap(errs.ErrInvalidArgument, "mapData is not valid JSON")
	}
	return s.repo.UpdateConfig(ctx, req)
}
