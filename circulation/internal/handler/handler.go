package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	mw "github.com/Astemirdum/library-circulation/pkg/middleware"
	"github.com/Astemirdum/library-circulation/pkg/validate"
	_ "github.com/Astemirdum/library-circulation/swagger"
)

type Handler struct {
	circulationSvc CirculationService
	tokens         map[string]string
	log            *zap.Logger
}

// New builds the HTTP layer. tokens maps staff bearer tokens to staff ids.
func New(circulationSvc CirculationService, tokens map[string]string, log *zap.Logger) *Handler {
	return &Handler{
		circulationSvc: circulationSvc,
		tokens:         tokens,
		log:            log,
	}
}

// NewRouter
// @title Library circulation API
// @version 1.0
// @BasePath /api/v1
// @securityDefinitions.apikey StaffToken
// @in header
// @name Authorization
func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", mw.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(mw.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		mw.NewRateLimiter(apiRPS),
	)

	// patron self-service
	api.GET("/catalog/waterfall", h.WaterfallSearch)
	api.POST("/circulation/holds", h.PlaceHold)

	staff := api.Group("", mw.TokenAuth(h.tokens))
	staff.POST("/circulation/checkout", h.Checkout)
	staff.POST("/circulation/return", h.ReturnBook)
	staff.GET("/circulation/rules", h.ListRules)
	staff.PUT("/circulation/rules", h.UpsertRule)

	staff.GET("/books/:barcode", h.GetBook)
	staff.GET("/patrons/:studentId", h.GetPatron)
	staff.GET("/patrons/:studentId/transactions", h.ListTransactions)

	staff.GET("/system-config", h.GetConfig)
	staff.POST("/system-config", h.UpdateConfig)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps engine errors onto status codes.
func httpError(err error) *echo.HTTPError {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrDuplicateHold):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrEmptyBarcodes), errors.Is(err, errs.ErrInvalidArgument):
		code = http.StatusBadRequest
	}
	return echo.NewHTTPError(code, err.Error())
}

// Checkout
// @Summary Issue loans for a stack of barcodes
// @Tags circulation
// @Accept json
// @Produce json
// @Security StaffToken
// @Param request body model.CheckoutRequest true "patron and barcodes"
// @Success 200 {object} model.CheckoutResult
// @Failure 403 {object} echo.HTTPError
// @Failure 404 {object} echo.HTTPError
// @Router /circulation/checkout [post]
func (h *Handler) Checkout(c echo.Context) error {
	var req model.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := h.circulationSvc.Checkout(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ReturnBook
// @Summary Return a book, assess fines and promote the next hold
// @Tags circulation
// @Accept json
// @Produce json
// @Security StaffToken
// @Param request body model.ReturnRequest true "barcode"
// @Success 200 {object} model.ReturnResult
// @Failure 404 {object} echo.HTTPError
// @Router /circulation/return [post]
func (h *Handler) ReturnBook(c echo.Context) error {
	var req model.ReturnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := h.circulationSvc.ReturnBook(c.Request().Context(), req.Barcode, mw.StaffID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// PlaceHold
// @Summary Queue a hold on a book
// @Tags circulation
// @Accept json
// @Produce json
// @Param request body model.PlaceHoldRequest true "barcode and patron"
// @Success 201 {object} model.PlaceHoldResult
// @Failure 409 {object} echo.HTTPError
// @Router /circulation/holds [post]
func (h *Handler) PlaceHold(c echo.Context) error {
	var req model.PlaceHoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := h.circulationSvc.PlaceHold(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetBook
// @Summary Book snapshot
// @Tags catalog
// @Produce json
// @Security StaffToken
// @Param barcode path string true "barcode"
// @Success 200 {object} model.Book
// @Router /books/{barcode} [get]
func (h *Handler) GetBook(c echo.Context) error {
	barcode := c.Param("barcode")
	if barcode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty barcode")
	}
	book, err := h.circulationSvc.GetBook(c.Request().Context(), barcode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

// GetPatron
// @Summary Patron snapshot
// @Tags patrons
// @Produce json
// @Security StaffToken
// @Param studentId path string true "student id"
// @Success 200 {object} model.PatronView
// @Router /patrons/{studentId} [get]
func (h *Handler) GetPatron(c echo.Context) error {
	studentID := c.Param("studentId")
	if studentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty studentId")
	}
	patron, err := h.circulationSvc.GetPatron(c.Request().Context(), studentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patron)
}

// ListTransactions
// @Summary Fine ledger of a patron, newest first
// @Tags patrons
// @Produce json
// @Security StaffToken
// @Param studentId path string true "student id"
// @Success 200 {array} model.Transaction
// @Router /patrons/{studentId}/transactions [get]
func (h *Handler) ListTransactions(c echo.Context) error {
	studentID := c.Param("studentId")
	if studentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty studentId")
	}
	items, err := h.circulationSvc.ListTransactions(c.Request().Context(), studentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// WaterfallSearch
// @Summary Look an ISBN up locally, then in the external catalog
// @Tags catalog
// @Produce json
// @Param isbn query string true "ISBN"
// @Success 200 {object} model.WaterfallResult
// @Failure 404 {object} model.WaterfallResult
// @Router /catalog/waterfall [get]
func (h *Handler) WaterfallSearch(c echo.Context) error {
	isbn := c.QueryParam("isbn")
	if isbn == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ISBN required")
	}
	res, err := h.circulationSvc.WaterfallSearch(c.Request().Context(), isbn)
	if err != nil {
		return httpError(err)
	}
	if res.Source == model.SourceAll {
		return c.JSON(http.StatusNotFound, res)
	}
	return c.JSON(http.StatusOK, res)
}

// ListRules
// @Summary Circulation rules
// @Tags rules
// @Produce json
// @Security StaffToken
// @Success 200 {array} model.CirculationRule
// @Router /circulation/rules [get]
func (h *Handler) ListRules(c echo.Context) error {
	rules, err := h.circulationSvc.ListRules(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

// UpsertRule
// @Summary Create or replace the rule for a patron group and material type
// @Tags rules
// @Accept json
// @Produce json
// @Security StaffToken
// @Param request body model.CirculationRule true "rule"
// @Success 200 {object} model.CirculationRule
// @Router /circulation/rules [put]
func (h *Handler) UpsertRule(c echo.Context) error {
	var rule model.CirculationRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.circulationSvc.UpsertRule(c.Request().Context(), rule)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetConfig
// @Summary Library-wide settings
// @Tags config
// @Produce json
// @Security StaffToken
// @Success 200 {object} model.SystemConfiguration
// @Router /system-config [get]
func (h *Handler) GetConfig(c echo.Context) error {
	cfg, err := h.circulationSvc.GetConfig(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// UpdateConfig
// @Summary Update logo and floor map
// @Tags config
// @Accept json
// @Produce json
// @Security StaffToken
// @Param request body model.UpdateConfigRequest true "settings"
// @Success 200 {object} model.SystemConfiguration
// @Router /system-config [post]
func (h *Handler) UpdateConfig(c echo.Context) error {
	var req model.UpdateConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg, err := h.circulationSvc.UpdateConfig(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}
