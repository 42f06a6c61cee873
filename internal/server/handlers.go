package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/patterns"
	"github.com/aristath/pivotscope/internal/modules/snapshots"
	"github.com/aristath/pivotscope/internal/modules/universe"
)

// Handlers serves the read-only data API
type Handlers struct {
	securityRepo   *universe.SecurityRepository
	breakpointRepo *universe.BreakpointRepository
	priceRepo      *history.PriceRepository
	subpatternRepo *patterns.SubpatternRepository
	predictionRepo *patterns.PredictionRepository
	snapshotRepo   *snapshots.Repository
	log            zerolog.Logger
}

// NewHandlers creates the data API handlers
func NewHandlers(
	securityRepo *universe.SecurityRepository,
	breakpointRepo *universe.BreakpointRepository,
	priceRepo *history.PriceRepository,
	subpatternRepo *patterns.SubpatternRepository,
	predictionRepo *patterns.PredictionRepository,
	snapshotRepo *snapshots.Repository,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		securityRepo:   securityRepo,
		breakpointRepo: breakpointRepo,
		priceRepo:      priceRepo,
		subpatternRepo: subpatternRepo,
		predictionRepo: predictionRepo,
		snapshotRepo:   snapshotRepo,
		log:            log.With().Str("component", "handlers").Logger(),
	}
}

// HandleListSecurities returns all securities, or only active ones with ?active=true
func (h *Handlers) HandleListSecurities(w http.ResponseWriter, r *http.Request) {
	var (
		securities []universe.Security
		err        error
	)
	if r.URL.Query().Get("active") == "true" {
		securities, err = h.securityRepo.GetAllActive()
	} else {
		securities, err = h.securityRepo.GetAll()
	}
	if err != nil {
		h.serverError(w, err, "Failed to list securities")
		return
	}
	h.writeJSON(w, securities)
}

// HandleGetSecurity returns one security
func (h *Handlers) HandleGetSecurity(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	sec, err := h.securityRepo.GetBySymbol(symbol)
	if err != nil {
		h.serverError(w, err, "Failed to get security")
		return
	}
	if sec == nil {
		http.Error(w, "security not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, sec)
}

// HandleGetBreakpoints returns a security's breakpoint sequence
func (h *Handlers) HandleGetBreakpoints(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	breakpoints, err := h.breakpointRepo.GetBySymbol(symbol)
	if err != nil {
		h.serverError(w, err, "Failed to get breakpoints")
		return
	}
	h.writeJSON(w, breakpoints)
}

// HandleGetPrices returns a security's daily bars, optionally bounded
// with ?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handlers) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	var (
		bars []history.PriceBar
		err  error
	)
	if to != "" {
		bars, err = h.priceRepo.GetRange(symbol, from, to)
	} else {
		bars, err = h.priceRepo.GetSince(symbol, from)
	}
	if err != nil {
		h.serverError(w, err, "Failed to get prices")
		return
	}
	h.writeJSON(w, bars)
}

// HandleGetSnapshots returns a security's monthly snapshot trail
func (h *Handlers) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	snaps, err := h.snapshotRepo.GetBySymbol(symbol)
	if err != nil {
		h.serverError(w, err, "Failed to get snapshots")
		return
	}
	h.writeJSON(w, snaps)
}

// HandleListPredictions returns the current prediction set, best score first
func (h *Handlers) HandleListPredictions(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.predictionRepo.All()
	if err != nil {
		h.serverError(w, err, "Failed to list predictions")
		return
	}
	h.writeJSON(w, predictions)
}

// HandleGetPrediction returns one security's prediction
func (h *Handlers) HandleGetPrediction(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	prediction, err := h.predictionRepo.GetBySymbol(symbol)
	if err != nil {
		h.serverError(w, err, "Failed to get prediction")
		return
	}
	if prediction == nil {
		http.Error(w, "no prediction for symbol", http.StatusNotFound)
		return
	}
	h.writeJSON(w, prediction)
}

// HandleListSubpatterns returns the current subpattern library
func (h *Handlers) HandleListSubpatterns(w http.ResponseWriter, r *http.Request) {
	library, err := h.subpatternRepo.All()
	if err != nil {
		h.serverError(w, err, "Failed to list subpatterns")
		return
	}
	h.writeJSON(w, library)
}

// HandleGetMonthSnapshots returns all snapshots for one YYYY-MM month
func (h *Handlers) HandleGetMonthSnapshots(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")

	snaps, err := h.snapshotRepo.GetByMonth(month)
	if err != nil {
		h.serverError(w, err, "Failed to get month snapshots")
		return
	}
	h.writeJSON(w, snaps)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}
