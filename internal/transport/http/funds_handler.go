package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"etfoverlap/internal/edgar"
	apierrors "etfoverlap/internal/errors"
	"etfoverlap/internal/middleware"
	"etfoverlap/internal/nport"
	"etfoverlap/internal/services"
	"etfoverlap/pkg/contracts/domain"
)

// FundsHandler handles fund and overlap HTTP requests.
type FundsHandler struct {
	service      FundServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewFundsHandler creates a new funds handler.
func NewFundsHandler(service FundServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *FundsHandler {
	return &FundsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "funds_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the fund routes.
func (h *FundsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListFunds)
	r.Route("/{ticker}", func(r chi.Router) {
		r.Use(h.TickerCtx)
		r.Get("/holdings", h.GetHoldings)
	})

	return r
}

// TickerCtx middleware validates the ticker parameter.
func (h *FundsHandler) TickerCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		if ticker == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("ticker", "Ticker symbol is required"))
			return
		}
		if len(ticker) > 10 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("ticker", "Invalid ticker symbol format"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListFunds handles GET /api/funds
func (h *FundsHandler) ListFunds(w http.ResponseWriter, r *http.Request) {
	funds := h.service.ListFunds()

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   funds,
		"count":  len(funds),
	})
}

// GetHoldings handles GET /api/funds/{ticker}/holdings
func (h *FundsHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	ticker := chi.URLParam(r, "ticker")

	h.logger.InfoContext(r.Context(), "fetching holdings",
		slog.String("request_id", reqID),
		slog.String("ticker", ticker),
	)

	snapshot, err := h.service.GetHoldings(r.Context(), ticker)
	if err != nil {
		h.handlePipelineError(w, r, err, ticker)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snapshot,
		"count":  len(snapshot.Holdings),
	})
}

// OverlapRequest is the body of POST /api/overlap.
type OverlapRequest struct {
	Ticker1 string `json:"ticker1" validate:"required,min=1,max=10"`
	Ticker2 string `json:"ticker2" validate:"required,min=1,max=10"`
}

// ComputeOverlap handles POST /api/overlap
func (h *FundsHandler) ComputeOverlap(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req OverlapRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"VALIDATION_FAILED",
			"Request validation failed",
			err.Error(),
		))
		return
	}

	// Same-fund comparison is a boundary validation, not a pipeline
	// concern: the engine itself would happily report 100% overlap.
	if domain.NormalizeTicker(req.Ticker1) == domain.NormalizeTicker(req.Ticker2) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("ticker2", "Please select two different funds to compare"))
		return
	}

	h.logger.InfoContext(r.Context(), "computing overlap",
		slog.String("request_id", reqID),
		slog.String("ticker1", req.Ticker1),
		slog.String("ticker2", req.Ticker2),
	)

	result, err := h.service.ComputeOverlap(r.Context(), req.Ticker1, req.Ticker2)
	if err != nil {
		h.handlePipelineError(w, r, err, req.Ticker1+"/"+req.Ticker2)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// handlePipelineError maps pipeline errors to stable response
// categories: registry and filing lookups are "not found", upstream
// fetch and parse failures are "bad gateway", everything else falls
// through to the central handler (which maps caller deadlines to 504).
func (h *FundsHandler) handlePipelineError(w http.ResponseWriter, r *http.Request, err error, subject string) {
	h.logger.ErrorContext(r.Context(), "holdings pipeline failed",
		slog.String("error", err.Error()),
		slog.String("subject", subject),
	)

	switch {
	case errors.Is(err, services.ErrUnknownTicker):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"FUND_NOT_FOUND",
			fmt.Sprintf("Fund '%s' not found", subject),
			map[string]interface{}{"ticker": subject},
		))

	case errors.Is(err, services.ErrNoFilingFound):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"FILING_NOT_FOUND",
			fmt.Sprintf("No holdings filing available for '%s'", subject),
			map[string]interface{}{"ticker": subject},
		))

	default:
		var fetchErr *edgar.FetchError
		var parseErr *nport.ParseError
		switch {
		case errors.As(err, &fetchErr):
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadGateway,
				"UPSTREAM_FAILED",
				"Could not fetch filing data from SEC EDGAR",
				fetchErr.Error(),
			))
		case errors.As(err, &parseErr):
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadGateway,
				"FILING_MALFORMED",
				"The SEC filing could not be parsed",
				parseErr.Reason,
			))
		default:
			h.errorHandler.HandleError(w, r, err)
		}
	}
}
