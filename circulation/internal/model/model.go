package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type MaterialType string

const (
	MaterialRegular    MaterialType = "REGULAR"
	MaterialReference  MaterialType = "REFERENCE"
	MaterialPeriodical MaterialType = "PERIODICAL"
	MaterialMedia      MaterialType = "MEDIA"
)

type PatronGroup string

const (
	GroupStudent       PatronGroup = "STUDENT"
	GroupTeacher       PatronGroup = "TEACHER"
	GroupLibrarian     PatronGroup = "LIBRARIAN"
	GroupAdministrator PatronGroup = "ADMINISTRATOR"
)

const (
	DefaultLoanDays = 14
	HoldTTL         = 24 * time.Hour
)

// DefaultFinePerDay applies when no circulation rule matches.
var DefaultFinePerDay = decimal.RequireFromString("0.50")

type Book struct {
	ID            int          `json:"id" db:"id"`
	ISBN          string       `json:"isbn" db:"isbn"`
	Barcode       string       `json:"barcode" db:"barcode"`
	Title         string       `json:"title" db:"title"`
	Author        string       `json:"author" db:"author"`
	Status        BookStatus   `json:"status" db:"status"`
	MaterialType  MaterialType `json:"materialType" db:"material_type"`
	HoldExpiresAt *time.Time   `json:"holdExpiresAt" db:"hold_expires_at"`
	QueueLength   int          `json:"queueLength" db:"queue_length"`
	LoanCount     int          `json:"loanCount" db:"loan_count"`
	Version       int          `json:"-" db:"version"`
}

// Apply moves the book through the status machine.
func (b *Book) Apply(ev BookEvent) error {
	next, err := b.Status.Transition(ev)
	if err != nil {
		return err
	}
	b.Status = next
	return nil
}

type Patron struct {
	ID          int             `json:"-" db:"id"`
	StudentID   string          `json:"studentId" db:"student_id"`
	FullName    string          `json:"fullName" db:"full_name"`
	PatronGroup PatronGroup     `json:"patronGroup" db:"patron_group"`
	IsBlocked   bool            `json:"isBlocked" db:"is_blocked"`
	Fines       decimal.Decimal `json:"fines" db:"fines"`
	Version     int             `json:"-" db:"version"`
}

// AssessFine adds an overdue fine and blocks the patron, even when the rule's rate
// yields nothing. Blocks are only lifted administratively.
func (p *Patron) AssessFine(amount decimal.Decimal) {
	if amount.IsNegative() {
		return
	}
	p.Fines = p.Fines.Add(amount).Round(2)
	p.IsBlocked = true
}

type Loan struct {
	ID         int        `json:"-" db:"id"`
	LoanUid    string     `json:"loanUid" db:"loan_uid"`
	BookID     int        `json:"bookId" db:"book_id"`
	PatronID   int        `json:"-" db:"patron_id"`
	IssuedAt   time.Time  `json:"issuedAt" db:"issued_at"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnedAt *time.Time `json:"returnedAt" db:"returned_at"`
}

type Hold struct {
	ID        int        `json:"-" db:"id"`
	HoldUid   string     `json:"holdUid" db:"hold_uid"`
	BookID    int        `json:"bookId" db:"book_id"`
	PatronID  int        `json:"-" db:"patron_id"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	IsActive  bool       `json:"isActive" db:"is_active"`
	ExpiresAt *time.Time `json:"expiresAt" db:"expires_at"`
}

type CirculationRule struct {
	ID           int             `json:"id" db:"id"`
	PatronGroup  PatronGroup     `json:"patronGroup" db:"patron_group" validate:"required,oneof=STUDENT TEACHER LIBRARIAN ADMINISTRATOR"`
	MaterialType MaterialType    `json:"materialType" db:"material_type" validate:"required,oneof=REGULAR REFERENCE PERIODICAL MEDIA"`
	LoanDays     int             `json:"loanDays" db:"loan_days" validate:"gte=0"`
	MaxItems     int             `json:"maxItems" db:"max_items" validate:"gte=0"`
	FinePerDay   decimal.Decimal `json:"finePerDay" db:"fine_per_day"`
}

// Terms resolves loan length and fine rate, falling back to the library defaults.
func Terms(rule *CirculationRule) (loanDays int, finePerDay decimal.Decimal) {
	if rule == nil {
		return DefaultLoanDays, DefaultFinePerDay
	}
	return rule.LoanDays, rule.FinePerDay
}

type TransactionType string

const (
	TransactionFineAssessment TransactionType = "FINE_ASSESSMENT"
)

type TransactionMethod string

const (
	MethodSystem TransactionMethod = "SYSTEM"
)

type Transaction struct {
	ID             int               `json:"-" db:"id"`
	TransactionUid string            `json:"transactionUid" db:"transaction_uid"`
	PatronID       int               `json:"-" db:"patron_id"`
	Amount         decimal.Decimal   `json:"amount" db:"amount"`
	Type           TransactionType   `json:"type" db:"type"`
	Method         TransactionMethod `json:"method" db:"method"`
	Timestamp      time.Time         `json:"timestamp" db:"timestamp"`
	LibrarianID    string            `json:"librarianId" db:"librarian_id"`
	Note           string            `json:"note" db:"note"`
	BookTitle      string            `json:"bookTitle" db:"book_title"`
}

type SystemConfiguration struct {
	ID          int             `json:"-" db:"id"`
	Logo        *string         `json:"logo" db:"logo"`
	MapData     json.RawMessage `json:"mapData" db:"map_data"`
	LastUpdated time.Time       `json:"lastUpdated" db:"last_updated"`
}

type UpdateConfigRequest struct {
	Logo    *string         `json:"logo"`
	MapData json.RawMessage `json:"mapData"`
}

type CheckoutRequest struct {
	PatronID string   `json:"patronId" validate:"required"`
	Barcodes []string `json:"books" validate:"required,min=1,dive,required"`
}

type CheckoutResult struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
	Message   string   `json:"message"`
}

type ReturnRequest struct {
	Barcode string `json:"barcode" validate:"required"`
}

type ReturnResult struct {
	Success     bool        `json:"success"`
	FineAmount  Money       `json:"fineAmount"`
	DaysOverdue int         `json:"daysOverdue"`
	Book        Book        `json:"book"`
	NextPatron  *PatronView `json:"nextPatron"`
}

type PlaceHoldRequest struct {
	Barcode  string `json:"barcode" validate:"required"`
	PatronID string `json:"patronId" validate:"required"`
}

type PlaceHoldResult struct {
	Hold Hold `json:"hold"`
	Book Book `json:"book"`
}

type PatronView struct {
	StudentID   string      `json:"studentId"`
	FullName    string      `json:"fullName"`
	PatronGroup PatronGroup `json:"patronGroup"`
	IsBlocked   bool        `json:"isBlocked"`
	Fines       Money       `json:"fines"`
}

func NewPatronView(p Patron) PatronView {
	return PatronView{
		StudentID:   p.StudentID,
		FullName:    p.FullName,
		PatronGroup: p.PatronGroup,
		IsBlocked:   p.IsBlocked,
		Fines:       Money(p.Fines),
	}
}

type Source string

const (
	SourceLocal    Source = "LOCAL"
	SourceExternal Source = "EXTERNAL"
	SourceAll      Source = "ALL"
)

type BookMetadata struct {
	ISBN      string   `json:"isbn"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Publisher string   `json:"publisher,omitempty"`
	Pages     int      `json:"pages,omitempty"`
	CoverURL  string   `json:"coverUrl,omitempty"`
}

type WaterfallResult struct {
	Source Source        `json:"source"`
	Status string        `json:"status"`
	Book   *Book         `json:"book,omitempty"`
	Data   *BookMetadata `json:"data,omitempty"`
}
