package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/haniwon/clinic-server/formula"
)

// FormulaDefinitionRow is one stored formula definition with its optional
// classification metadata.
type FormulaDefinitionRow struct {
	Name        string `json:"name"`
	Alias       string `json:"alias,omitempty"`
	Composition string `json:"composition"`
	Category    string `json:"category,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Definition strips the metadata down to the engine's input form.
func (r FormulaDefinitionRow) Definition() formula.FormulaDefinition {
	return formula.FormulaDefinition{Name: r.Name, Alias: r.Alias, Composition: r.Composition}
}

// ListHerbs returns the herb reference table ordered by ID.
func (s *Store) ListHerbs(ctx context.Context) ([]formula.HerbRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, unit FROM herbs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list herbs: %w", err)
	}
	defer rows.Close()

	herbs := make([]formula.HerbRecord, 0)
	for rows.Next() {
		var h formula.HerbRecord
		if err := rows.Scan(&h.ID, &h.Name, &h.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan herb: %w", err)
		}
		herbs = append(herbs, h)
	}
	return herbs, rows.Err()
}

// UpsertHerb inserts or replaces one herb record.
func (s *Store) UpsertHerb(ctx context.Context, h formula.HerbRecord) error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("herb name cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO herbs (id, name, unit) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, unit = excluded.unit`,
		h.ID, h.Name, h.Unit)
	if err != nil {
		return fmt.Errorf("failed to upsert herb: %w", err)
	}
	return nil
}

// ListFormulaDefinitions returns all stored definitions in name order.
func (s *Store) ListFormulaDefinitions(ctx context.Context) ([]FormulaDefinitionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, alias, composition, category, source
		FROM formula_definitions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list formula definitions: %w", err)
	}
	defer rows.Close()

	definitions := make([]FormulaDefinitionRow, 0)
	for rows.Next() {
		var d FormulaDefinitionRow
		if err := rows.Scan(&d.Name, &d.Alias, &d.Composition, &d.Category, &d.Source); err != nil {
			return nil, fmt.Errorf("failed to scan formula definition: %w", err)
		}
		definitions = append(definitions, d)
	}
	return definitions, rows.Err()
}

// GetFormulaDefinition returns one definition by exact name.
func (s *Store) GetFormulaDefinition(ctx context.Context, name string) (*FormulaDefinitionRow, error) {
	var d FormulaDefinitionRow
	err := s.db.QueryRowContext(ctx, `
		SELECT name, alias, composition, category, source
		FROM formula_definitions WHERE name = ?`, name).
		Scan(&d.Name, &d.Alias, &d.Composition, &d.Category, &d.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get formula definition: %w", err)
	}
	return &d, nil
}

// UpsertFormulaDefinition inserts or replaces one definition by name.
func (s *Store) UpsertFormulaDefinition(ctx context.Context, d FormulaDefinitionRow) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("formula name cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO formula_definitions (name, alias, composition, category, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			alias = excluded.alias,
			composition = excluded.composition,
			category = excluded.category,
			source = excluded.source`,
		d.Name, d.Alias, d.Composition, d.Category, d.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert formula definition: %w", err)
	}
	return nil
}

// DeleteFormulaDefinition removes one definition by name.
func (s *Store) DeleteFormulaDefinition(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM formula_definitions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete formula definition: %w", err)
	}
	return requireAffected(res)
}
