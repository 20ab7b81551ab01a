package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/parser"
	"github.com/gilchrisn/procurement-risk-graph/pkg/service"
)

const (
	maxUploadBytes   = 100 << 20 // 100MB
	defaultEdgeLimit = 100
	maxEdgeLimit     = 10000
)

// Handlers contains HTTP request handlers
type Handlers struct {
	analyses *service.AnalysisService
	logger   zerolog.Logger
}

// NewHandlers creates new API handlers
func NewHandlers(analyses *service.AnalysisService, logger zerolog.Logger) *Handlers {
	return &Handlers{analyses: analyses, logger: logger}
}

// EdgeView is a scored edge joined with its supplier's community
type EdgeView struct {
	models.ScoredEdge
	CommunityID int  `json:"community_id"`
	HighRisk    bool `json:"high_risk"`
}

// CreateAnalysis accepts a contract CSV, either as the raw body or as the
// multipart field "file", and starts an analysis
func (h *Handlers) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	params, err := h.parseParameters(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid analysis parameters", err)
		return
	}

	var body io.Reader = r.Body
	name := r.URL.Query().Get("name")
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "Missing required file: file", err)
			return
		}
		defer file.Close()
		body = file
		if name == "" {
			name = header.Filename
		}
	}
	if name == "" {
		name = "Unnamed analysis"
	}

	analysis, err := h.analyses.Submit(name, body, params)
	if err != nil {
		h.logger.Error().Err(err).Str("name", name).Msg("Failed to submit analysis")
		switch {
		case errors.Is(err, service.ErrCapacity):
			WriteErrorResponse(w, http.StatusServiceUnavailable, "Too many analyses", err)
		case errors.Is(err, parser.ErrMissingColumn):
			WriteErrorResponse(w, http.StatusUnprocessableEntity, "Contract table is missing required columns", err)
		default:
			WriteErrorResponse(w, http.StatusBadRequest, "Failed to submit analysis", err)
		}
		return
	}

	WriteSuccessResponse(w, http.StatusAccepted, "Analysis submitted", analysis)
}

func (h *Handlers) parseParameters(r *http.Request) (service.Parameters, error) {
	params := h.analyses.DefaultParameters()
	q := r.URL.Query()

	if raw := q.Get("resolution"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, &paramError{key: "resolution", value: raw}
		}
		params.Resolution = v
	}
	if raw := q.Get("seed"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, &paramError{key: "seed", value: raw}
		}
		params.Seed = v
	}
	if raw := q.Get("runs"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return params, &paramError{key: "runs", value: raw}
		}
		params.Runs = v
	}
	return params, nil
}

// ListAnalyses lists every analysis
func (h *Handlers) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, http.StatusOK, "Analyses retrieved successfully", h.analyses.List())
}

// GetAnalysis returns the status and headline metrics of an analysis
func (h *Handlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analyses.Get(mux.Vars(r)["analysisId"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteSuccessResponse(w, http.StatusOK, "Analysis retrieved successfully", analysis)
}

// DeleteAnalysis cancels and forgets an analysis
func (h *Handlers) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := h.analyses.Delete(mux.Vars(r)["analysisId"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteSuccessResponse(w, http.StatusOK, "Analysis deleted", nil)
}

// GetCommunities returns community summary rows, optionally only the large
// high-risk ones
func (h *Handlers) GetCommunities(w http.ResponseWriter, r *http.Request) {
	result, err := h.analyses.Result(mux.Vars(r)["analysisId"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	rows := result.Summary.Communities
	if topLarge, _ := strconv.ParseBool(r.URL.Query().Get("top_large")); topLarge {
		rows = result.TopLarge
	}
	WriteSuccessResponse(w, http.StatusOK, "Communities retrieved successfully", rows)
}

// GetCommunitySuppliers returns the suppliers of one community
func (h *Handlers) GetCommunitySuppliers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := h.analyses.Result(vars["analysisId"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	communityID, err := strconv.Atoi(vars["communityId"])
	if err != nil || communityID < 0 || communityID >= len(result.Detection.Communities) {
		WriteErrorResponse(w, http.StatusNotFound, "Community not found", nil)
		return
	}

	suppliers := make([]models.SupplierCommunity, 0, len(result.Detection.Communities[communityID]))
	for _, row := range result.Suppliers {
		if row.CommunityID == communityID {
			suppliers = append(suppliers, row)
		}
	}
	WriteSuccessResponse(w, http.StatusOK, "Community suppliers retrieved successfully", suppliers)
}

// GetEdges returns scored edges joined with their community, filtered by
// min_risk and capped by limit
func (h *Handlers) GetEdges(w http.ResponseWriter, r *http.Request) {
	result, err := h.analyses.Result(mux.Vars(r)["analysisId"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	limit, err := queryInt(r, "limit", defaultEdgeLimit, maxEdgeLimit)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	minRisk := 0.0
	if raw := r.URL.Query().Get("min_risk"); raw != "" {
		if minRisk, err = strconv.ParseFloat(raw, 64); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "Invalid min_risk", &paramError{key: "min_risk", value: raw})
			return
		}
	}

	edges := make([]EdgeView, 0, limit)
	for i, e := range result.Scored {
		if len(edges) >= limit {
			break
		}
		if e.RiskScore < minRisk {
			continue
		}
		edges = append(edges, EdgeView{
			ScoredEdge:  e,
			CommunityID: result.Summary.EdgeCommunity[i],
			HighRisk:    result.Summary.HighRisk[i],
		})
	}
	WriteSuccessResponse(w, http.StatusOK, "Edges retrieved successfully", edges)
}

// Rankings groups the case-study tables of an analysis
type Rankings struct {
	TopEdges      []models.ScoredEdge    `json:"top_edges"`
	Buyers        []models.ActorRisk     `json:"buyers"`
	Suppliers     []models.ActorRisk     `json:"suppliers"`
	RiskQuantiles []models.QuantilePoint `json:"risk_quantiles"`
	Centrality    []models.SupplierRank  `json:"pagerank"`
}

// GetRankings returns the highest-risk edges, buyers and suppliers together
// with the risk distribution and the most central suppliers
func (h *Handlers) GetRankings(w http.ResponseWriter, r *http.Request) {
	result, err := h.analyses.Result(mux.Vars(r)["analysisId"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	WriteSuccessResponse(w, http.StatusOK, "Rankings retrieved successfully", Rankings{
		TopEdges:      result.TopRisk,
		Buyers:        result.BuyersHighRisk,
		Suppliers:     result.SuppliersHighRisk,
		RiskQuantiles: result.RiskQuantiles,
		Centrality:    result.Centrality,
	})
}

// HealthCheck returns server health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"analyses":  len(h.analyses.List()),
	}
	WriteSuccessResponse(w, http.StatusOK, "Service is healthy", health)
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "Analysis not found", err)
	case errors.Is(err, service.ErrNotReady):
		WriteErrorResponse(w, http.StatusConflict, "Analysis is not completed", err)
	default:
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", err)
	}
}
