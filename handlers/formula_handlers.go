package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/metrics"
)

type previewRequest struct {
	FormulaText    string                   `json:"formulaText"`
	AdjustmentText string                   `json:"adjustmentText,omitempty"`
	Dosing         formula.DosingParameters `json:"dosing"`
}

type previewResponse struct {
	MergedHerbs []formula.MergedHerb     `json:"mergedHerbs"`
	FinalHerbs  []formula.FinalHerb      `json:"finalHerbs"`
	Adjustments []formula.HerbAdjustment `json:"adjustments,omitempty"`
	Quantities  formula.Quantities       `json:"quantities"`
}

// PreviewFormula serves POST /api/formulas/preview: the full pipeline from
// formula text to the dispensing list, without persisting anything.
func (h *Handler) PreviewFormula(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	merged, result, parseErr := h.runFormulaPipeline(&req)
	if parseErr != nil {
		h.respondParseError(w, parseErr)
		return
	}

	metrics.FormulaParseTotal.WithLabelValues("ok").Inc()

	h.RespondWithJSON(w, http.StatusOK, previewResponse{
		MergedHerbs: merged,
		FinalHerbs:  result.finalHerbs,
		Adjustments: formula.ParseAdjustments(req.AdjustmentText),
		Quantities:  result.quantities,
	})
}

type pipelineResult struct {
	finalHerbs []formula.FinalHerb
	quantities formula.Quantities
}

// runFormulaPipeline validates, parses and computes one preview request.
// The returned error is either a validation failure wrapped as a
// *formula.ParseError surrogate or the parse error itself.
func (h *Handler) runFormulaPipeline(req *previewRequest) ([]formula.MergedHerb, pipelineResult, error) {
	if strings.TrimSpace(req.FormulaText) == "" {
		metrics.FormulaParseTotal.WithLabelValues("invalid").Inc()
		return nil, pipelineResult{}, errInvalidFormulaText
	}

	if err := h.validator.ValidateInput(req.FormulaText); err != nil {
		metrics.FormulaParseTotal.WithLabelValues("invalid").Inc()
		return nil, pipelineResult{}, err
	}

	merged, err := formula.Parse(req.FormulaText, h.catalog.GetTemplates())
	if err != nil {
		return nil, pipelineResult{}, err
	}

	finalHerbs, quantities := formula.ComputeFinal(merged, req.Dosing, req.AdjustmentText, h.catalog.HerbID)
	return merged, pipelineResult{finalHerbs: finalHerbs, quantities: quantities}, nil
}

var errInvalidFormulaText = errors.New("formula text cannot be empty")

// respondParseError maps pipeline errors onto HTTP responses. Ambiguous and
// not-found names carry their candidates so the client can disambiguate.
func (h *Handler) respondParseError(w http.ResponseWriter, err error) {
	var parseErr *formula.ParseError
	if errors.As(err, &parseErr) {
		if len(parseErr.Ambiguous) > 0 {
			metrics.FormulaParseTotal.WithLabelValues("ambiguous").Inc()
		} else {
			metrics.FormulaParseTotal.WithLabelValues("not_found").Inc()
		}
		h.RespondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     http.StatusText(http.StatusUnprocessableEntity),
			"message":   parseErr.Error(),
			"ambiguous": parseErr.Ambiguous,
			"notFound":  parseErr.NotFound,
		})
		return
	}

	h.RespondWithError(w, http.StatusBadRequest, err.Error())
}
