package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/store"
)

// ListHerbs serves GET /api/herbs from the in-memory catalog.
func (h *Handler) ListHerbs(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, h.catalog.GetHerbs())
}

// UpsertHerb serves PUT /api/herbs and refreshes the catalog.
func (h *Handler) UpsertHerb(w http.ResponseWriter, r *http.Request) {
	var herb formula.HerbRecord
	if !h.decodeJSON(w, r, &herb) {
		return
	}

	if herb.ID <= 0 || strings.TrimSpace(herb.Name) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Herb needs a positive id and a name")
		return
	}

	if err := h.db.UpsertHerb(r.Context(), herb); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.triggerRebuild(r.Context())
	h.RespondWithJSON(w, http.StatusOK, herb)
}

// RebuildCatalog serves POST /api/catalog/rebuild: forces an immediate
// rebuild instead of waiting for the hourly schedule.
func (h *Handler) RebuildCatalog(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Catalog rebuilds are not available")
		return
	}

	if err := h.rebuilder.RebuildCatalog(r.Context()); err != nil {
		logging.Error("Manual catalog rebuild failed", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Catalog rebuild failed: "+err.Error())
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rebuilt":   true,
		"herbs":     len(h.catalog.GetHerbs()),
		"templates": len(h.catalog.GetTemplates()),
	})
}

// ListFormulaTemplates serves GET /api/formulas: the resolved templates of
// the active catalog, warnings included.
func (h *Handler) ListFormulaTemplates(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, h.catalog.GetTemplates())
}

// ListFormulaDefinitions serves GET /api/formulas/definitions: the raw
// stored rows, for editing.
func (h *Handler) ListFormulaDefinitions(w http.ResponseWriter, r *http.Request) {
	definitions, err := h.db.ListFormulaDefinitions(r.Context())
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, definitions)
}

// GetFormulaDefinition serves GET /api/formulas/definitions/{name}.
func (h *Handler) GetFormulaDefinition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	definition, err := h.db.GetFormulaDefinition(r.Context(), name)
	if err != nil {
		h.storeError(w, err, "Formula definition not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, definition)
}

// SaveFormulaDefinition serves PUT /api/formulas/definitions and refreshes
// the catalog.
func (h *Handler) SaveFormulaDefinition(w http.ResponseWriter, r *http.Request) {
	var definition store.FormulaDefinitionRow
	if !h.decodeJSON(w, r, &definition) {
		return
	}

	if strings.TrimSpace(definition.Name) == "" || strings.TrimSpace(definition.Composition) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Formula definition needs a name and a composition")
		return
	}

	if err := h.db.UpsertFormulaDefinition(r.Context(), definition); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.triggerRebuild(r.Context())
	h.RespondWithJSON(w, http.StatusOK, definition)
}

// DeleteFormulaDefinition serves DELETE /api/formulas/definitions/{name}.
func (h *Handler) DeleteFormulaDefinition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.db.DeleteFormulaDefinition(r.Context(), name); err != nil {
		h.storeError(w, err, "Formula definition not found")
		return
	}

	h.triggerRebuild(r.Context())
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"deleted": name})
}
