package handler

import (
	"context"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CirculationService interface {
	Checkout(ctx context.Context, req model.CheckoutRequest) (model.CheckoutResult, error)
	ReturnBook(ctx context.Context, barcode, staffID string) (model.ReturnResult, error)
	PlaceHold(ctx context.Context, req model.PlaceHoldRequest) (model.PlaceHoldResult, error)

	GetBook(ctx context.Context, barcode string) (model.Book, error)
	GetPatron(ctx context.Context, studentID string) (model.PatronView, error)
	ListTransactions(ctx context.Context, studentID string) ([]model.Transaction, error)
	WaterfallSearch(ctx context.Context, isbn string) (model.WaterfallResult, error)

	ListRules(ctx context.Context) ([]model.CirculationRule, error)
	UpsertRule(ctx context.Context, rule model.CirculationRule) (model.CirculationRule, error)

	GetConfig(ctx context.Context) (model.SystemConfiguration, error)
	UpdateConfig(ctx context.Context, req model.UpdateConfigRequest) (model.SystemConfiguration, error)
}

var _ CirculationService = (*service.Service)(nil)
