package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/statarb/internal/application/backtest"
	"github.com/alejandrodnm/statarb/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": s.storage != nil})
}

// runBacktest atiende POST /api/v1/backtest.
func (s *Server) runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(req.LegA.Points) < 2 || len(req.LegB.Points) < 2 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "leg_a and leg_b need at least two points each")
		return
	}

	cfg := s.pipelineConfig(req)
	legA := domain.NewPriceData(nameOr(req.LegA.Name, "A"), "USD", req.LegA.Points)
	legB := domain.NewPriceData(nameOr(req.LegB.Name, "B"), "USD", req.LegB.Points)
	pair, err := domain.AlignPair(legA, legB, "USD", nil, nil)
	if err == nil && pair.Len() < 2 {
		err = domain.ErrInsufficientData
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}

	p := backtest.NewPipeline(nil, nil, nil, cfg)
	run, err := p.Analyze(c.Request.Context(), pair)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	saved := false
	if req.Save && s.storage != nil {
		if err := s.storage.SaveRun(c.Request.Context(), run); err != nil {
			slog.Warn("failed to save run", "run_id", run.ID, "err", err)
		} else {
			saved = true
		}
	}

	detail := req.Detail || c.Query("detail") == "true"
	c.JSON(http.StatusOK, newBacktestResponse(run, detail, saved))
}

func (s *Server) pipelineConfig(req BacktestRequest) backtest.PipelineConfig {
	d := s.cfg.Defaults
	windows := req.Windows
	if len(windows) == 0 {
		windows = d.Windows
	}
	numStd := req.NumStd
	if numStd == 0 {
		numStd = d.NumStd
	}
	fee := d.Fee
	if req.Fee != nil {
		fee = *req.Fee
	}
	intercept := d.Intercept
	if req.Intercept != nil {
		intercept = *req.Intercept
	}
	maxP := req.MaxPValue
	if maxP == 0 {
		maxP = d.MaxPValue
	}
	return backtest.PipelineConfig{
		Intercept:           intercept,
		MaxPValue:           maxP,
		EnforceStationarity: req.EnforceStationarity,
		Specs:               backtest.SpecsFor(windows, numStd, req.PerWindowNumStd),
		Fee:                 fee,
		Runner:              d.Runner,
	}
}

// listRuns atiende GET /api/v1/runs?limit=N.
func (s *Server) listRuns(c *gin.Context) {
	if s.storage == nil {
		writeError(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "run history is not available")
		return
	}
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.storage.ListRuns(c.Request.Context(), limit)
	if err != nil {
		slog.Error("list runs failed", "err", err)
		writeError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs})
}

// getRun atiende GET /api/v1/runs/:id.
func (s *Server) getRun(c *gin.Context) {
	if s.storage == nil {
		writeError(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "run history is not available")
		return
	}
	run, err := s.storage.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrRunNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		slog.Error("get run failed", "id", c.Param("id"), "err", err)
		writeError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, newBacktestResponse(run, c.Query("detail") == "true", true))
}

// writeDomainError traduce errores del pipeline a status HTTP: parámetros
// inválidos son 400, datos con los que el modelo no puede trabajar son 422 y el
// resto 500.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrInvalidWindow):
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
	case backtest.IsInputError(err):
		writeError(c, http.StatusUnprocessableEntity, errorCode(err), err.Error())
	default:
		slog.Error("backtest failed", "err", err)
		writeError(c, http.StatusInternalServerError, "BACKTEST_ERROR", err.Error())
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotStationary):
		return "NOT_STATIONARY"
	case errors.Is(err, domain.ErrAlignment):
		return "ALIGNMENT_ERROR"
	default:
		return "INSUFFICIENT_DATA"
	}
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: msg}})
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
