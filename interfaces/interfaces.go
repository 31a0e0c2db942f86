// Package interfaces defines core abstractions for the clinic server to
// improve testability and separation of concerns.
package interfaces

import (
	"context"
	"time"

	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/store"
)

// CatalogStore is the thread-safe holder of the resolved formula catalog.
// The catalog is replaced atomically as a whole; readers always see a
// consistent snapshot.
type CatalogStore interface {
	GetHerbs() []formula.HerbRecord
	GetTemplates() []formula.ResolvedTemplate
	HerbID(name string) (int, bool)
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateCatalog(herbs []formula.HerbRecord, templates []formula.ResolvedTemplate)
	BeginUpdate() bool
	EndUpdate()
}

// CatalogSource supplies the raw catalog rows a rebuild starts from.
// *store.Store satisfies it; tests substitute fixtures.
type CatalogSource interface {
	ListHerbs(ctx context.Context) ([]formula.HerbRecord, error)
	ListFormulaDefinitions(ctx context.Context) ([]store.FormulaDefinitionRow, error)
}

// Scheduler manages background jobs: catalog rebuilds, survey session expiry
// and medication reminder scans.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports system health for the /health endpoint.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
}

// DataValidator validates user-supplied strings before they reach queries
// or the formula engine, and checks catalog integrity before a rebuild
// is allowed to swap in.
type DataValidator interface {
	ValidateInput(input string) error
	ValidateSearchQuery(query string) error
	ValidateCatalog(herbs []formula.HerbRecord, definitions []store.FormulaDefinitionRow) error
}
