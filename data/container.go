// Package data provides thread-safe storage for the resolved formula catalog.
// The catalog is held behind atomic pointers and swapped wholesale on rebuild,
// so request handlers always read a consistent snapshot with zero downtime.
package data

import (
	"sync/atomic"
	"time"

	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/interfaces"
	"github.com/haniwon/clinic-server/logging"
)

// Compile-time check to ensure CatalogContainer implements CatalogStore
var _ interfaces.CatalogStore = (*CatalogContainer)(nil)

// CatalogContainer holds the herb table and resolved templates with atomic
// pointers for zero-downtime updates.
type CatalogContainer struct {
	herbs           atomic.Value // []formula.HerbRecord
	herbIDs         atomic.Value // map[string]int
	templates       atomic.Value // []formula.ResolvedTemplate
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewCatalogContainer creates a container with empty data.
func NewCatalogContainer() *CatalogContainer {
	c := &CatalogContainer{}
	c.herbs.Store(make([]formula.HerbRecord, 0))
	c.herbIDs.Store(make(map[string]int))
	c.templates.Store(make([]formula.ResolvedTemplate, 0))
	c.lastUpdated.Store(time.Time{})
	c.serverStartTime.Store(time.Time{})
	return c
}

// Thread-safe getters with type check

// GetHerbs returns the herb reference table.
func (c *CatalogContainer) GetHerbs() []formula.HerbRecord {
	if v := c.herbs.Load(); v != nil {
		if herbs, ok := v.([]formula.HerbRecord); ok {
			return herbs
		}
	}

	logging.Warn("Herb list is empty or invalid")
	return []formula.HerbRecord{}
}

// GetTemplates returns the resolved template catalog.
func (c *CatalogContainer) GetTemplates() []formula.ResolvedTemplate {
	if v := c.templates.Load(); v != nil {
		if templates, ok := v.([]formula.ResolvedTemplate); ok {
			return templates
		}
	}

	logging.Warn("Template catalog is empty or invalid")
	return []formula.ResolvedTemplate{}
}

// HerbID resolves a herb name against the current herb table.
func (c *CatalogContainer) HerbID(name string) (int, bool) {
	if v := c.herbIDs.Load(); v != nil {
		if ids, ok := v.(map[string]int); ok {
			id, found := ids[name]
			return id, found
		}
	}
	return 0, false
}

// GetLastUpdated returns the time of the last catalog rebuild.
func (c *CatalogContainer) GetLastUpdated() time.Time {
	if v := c.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating reports whether a rebuild is in progress.
func (c *CatalogContainer) IsUpdating() bool {
	return c.updating.Load()
}

// GetServerStartTime returns when the server started.
func (c *CatalogContainer) GetServerStartTime() time.Time {
	if v := c.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}
	return time.Time{}
}

// SetServerStartTime records the server start time.
func (c *CatalogContainer) SetServerStartTime(t time.Time) {
	c.serverStartTime.Store(t)
}

// UpdateCatalog atomically replaces the whole catalog snapshot.
func (c *CatalogContainer) UpdateCatalog(herbs []formula.HerbRecord, templates []formula.ResolvedTemplate) {
	herbIDs := make(map[string]int, len(herbs))
	for _, h := range herbs {
		herbIDs[h.Name] = h.ID
	}

	c.herbs.Store(herbs)
	c.herbIDs.Store(herbIDs)
	c.templates.Store(templates)
	c.lastUpdated.Store(time.Now())
}

// BeginUpdate marks an update as started. Returns false when another update
// is already running.
func (c *CatalogContainer) BeginUpdate() bool {
	return c.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the running update as finished.
func (c *CatalogContainer) EndUpdate() {
	c.updating.Store(false)
}
