package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/service"
)

type world struct {
	repo    *memRepo
	svc     *service.Service
	clock   time.Time
	books   []model.Book
	patrons []model.Patron
}

func newWorld() *world {
	w := &world{repo: newMemRepo(), clock: now}
	w.repo.addRule(model.CirculationRule{PatronGroup: model.GroupStudent, MaterialType: model.MaterialRegular, LoanDays: 14, FinePerDay: fines("0.50")})
	w.repo.addRule(model.CirculationRule{PatronGroup: model.GroupTeacher, MaterialType: model.MaterialRegular, LoanDays: 30, FinePerDay: fines("0.10")})
	w.repo.addRule(model.CirculationRule{PatronGroup: model.GroupStudent, MaterialType: model.MaterialReference, LoanDays: 0, FinePerDay: fines("0")})
	w.repo.addRule(model.CirculationRule{PatronGroup: model.GroupTeacher, MaterialType: model.MaterialMedia, LoanDays: 3, FinePerDay: fines("1.25")})

	materials := []model.MaterialType{model.MaterialRegular, model.MaterialReference, model.MaterialMedia}
	for i, mt := range materials {
		w.books = append(w.books, w.repo.addBook(model.Book{
			Barcode:      fmt.Sprintf("B%d", i),
			ISBN:         fmt.Sprintf("978000000000%d", i),
			Title:        fmt.Sprintf("Title %d", i),
			MaterialType: mt,
		}))
	}
	groups := []model.PatronGroup{model.GroupStudent, model.GroupTeacher, model.GroupStudent, model.GroupLibrarian}
	for i, g := range groups {
		w.patrons = append(w.patrons, w.repo.addPatron(model.Patron{
			StudentID:   fmt.Sprintf("S%d", i),
			PatronGroup: g,
		}))
	}
	w.svc = service.NewService(w.repo, nil, nil, zap.NewNop(), service.WithClock(func() time.Time { return w.clock }))
	return w
}

func (w *world) totalFines() map[int]decimal.Decimal {
	out := map[int]decimal.Decimal{}
	for id, p := range w.repo.st.patrons {
		out[id] = p.Fines
	}
	return out
}

func (w *world) checkInvariants(t *rapid.T) {
	for _, b := range w.books {
		book := w.repo.book(b.ID)
		open := w.repo.openLoans(b.ID)
		active := w.repo.holdsOf(b.ID, true)
		if len(open) > 1 {
			t.Fatalf("%s: %d open loans", book.Barcode, len(open))
		}
		if len(active) > 1 {
			t.Fatalf("%s: %d active holds", book.Barcode, len(active))
		}
		if (book.Status == model.StatusLoaned) != (len(open) == 1) {
			t.Fatalf("%s: status %s with %d open loans", book.Barcode, book.Status, len(open))
		}
		if (book.Status == model.StatusHeld) != (len(active) == 1) {
			t.Fatalf("%s: status %s with %d active holds", book.Barcode, book.Status, len(active))
		}
	}
	for _, p := range w.repo.st.patrons {
		if p.Fines.IsNegative() {
			t.Fatalf("%s: negative fines %s", p.StudentID, p.Fines)
		}
	}
}

func TestService_CirculationProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := newWorld()
		ctx := context.Background()

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.SampledFrom([]string{"checkout", "return", "hold", "tick"}).Draw(t, "op")
			switch op {
			case "tick":
				w.clock = w.clock.Add(time.Duration(rapid.IntRange(1, 96).Draw(t, "hours")) * time.Hour)

			case "checkout":
				patron := w.patrons[rapid.IntRange(0, len(w.patrons)-1).Draw(t, "patron")]
				book := w.books[rapid.IntRange(0, len(w.books)-1).Draw(t, "book")]
				blocked := w.repo.patron(patron.ID).IsBlocked
				loansBefore := len(w.repo.st.loans)

				res, err := w.svc.Checkout(ctx, model.CheckoutRequest{PatronID: patron.StudentID, Barcodes: []string{book.Barcode}})
				if blocked {
					if !errors.Is(err, errs.ErrForbidden) {
						t.Fatalf("blocked %s: got %v", patron.StudentID, err)
					}
					if len(w.repo.st.loans) != loansBefore {
						t.Fatalf("blocked %s: loans touched", patron.StudentID)
					}
					break
				}
				if err != nil {
					t.Fatalf("checkout: %v", err)
				}
				if res.Processed+len(res.Errors) != 1 {
					t.Fatalf("checkout: %+v", res)
				}

			case "return":
				book := w.books[rapid.IntRange(0, len(w.books)-1).Draw(t, "book")]
				before := w.totalFines()
				var (
					borrower *model.Patron
					due      time.Time
				)
				if open := w.repo.openLoans(book.ID); len(open) == 1 {
					p := w.repo.patron(open[0].PatronID)
					borrower, due = &p, open[0].DueDate
				}

				res, err := w.svc.ReturnBook(ctx, book.Barcode, "")
				if err != nil {
					t.Fatalf("return: %v", err)
				}
				after := w.totalFines()

				for id, was := range before {
					delta := after[id].Sub(was)
					if borrower == nil || id != borrower.ID {
						if !delta.IsZero() {
							t.Fatalf("patron %d fines moved by %s", id, delta)
						}
						continue
					}
					days := 0
					if due.Before(w.clock) {
						days = int(w.clock.Sub(due) / (24 * time.Hour))
					}
					if res.DaysOverdue != days {
						t.Fatalf("daysOverdue %d, want %d", res.DaysOverdue, days)
					}
					rule, _ := w.repo.FindRule(ctx, borrower.PatronGroup, book.MaterialType)
					_, rate := model.Terms(rule)
					want := decimal.Zero
					if days > 0 {
						want = rate.Mul(decimal.NewFromInt(int64(days))).Round(2)
						if !w.repo.patron(id).IsBlocked {
							t.Fatalf("patron %d not blocked after %d days overdue", id, days)
						}
					}
					if !delta.Equal(want) || !res.FineAmount.Decimal().Equal(want) {
						t.Fatalf("fine %s / delta %s, want %s", res.FineAmount, delta, want)
					}
				}

				got := w.repo.book(book.ID)
				active := len(w.repo.holdsOf(book.ID, true))
				if (got.Status == model.StatusHeld) != (active == 1) {
					t.Fatalf("after return %s with %d active holds", got.Status, active)
				}
				if got.QueueLength != len(w.repo.holdsOf(book.ID, false)) {
					t.Fatalf("queueLength %d, want %d", got.QueueLength, len(w.repo.holdsOf(book.ID, false)))
				}

			case "hold":
				patron := w.patrons[rapid.IntRange(0, len(w.patrons)-1).Draw(t, "patron")]
				book := w.books[rapid.IntRange(0, len(w.books)-1).Draw(t, "book")]
				_, err := w.svc.PlaceHold(ctx, model.PlaceHoldRequest{Barcode: book.Barcode, PatronID: patron.StudentID})
				if err != nil && !errors.Is(err, errs.ErrForbidden) && !errors.Is(err, errs.ErrDuplicateHold) {
					t.Fatalf("hold: %v", err)
				}
			}
			w.checkInvariants(t)
		}
	})
}
