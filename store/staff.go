package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haniwon/clinic-server/auth"
)

// StaffAccount is one internal account for LAN web clients.
type StaffAccount struct {
	ID           string           `json:"id"`
	Username     string           `json:"username"`
	DisplayName  string           `json:"displayName"`
	PasswordHash string           `json:"-"`
	Role         auth.Role        `json:"role"`
	Permissions  auth.Permissions `json:"permissions"`
	IsActive     bool             `json:"isActive"`
	LastLoginAt  time.Time        `json:"lastLoginAt,omitzero"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// CreateStaffAccount inserts an account. Permissions default to the role's
// matrix when unset.
func (s *Store) CreateStaffAccount(ctx context.Context, a *StaffAccount) error {
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("staff username cannot be empty")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Permissions == (auth.Permissions{}) {
		a.Permissions = auth.PermissionsFor(a.Role)
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.IsActive = true

	permissions, err := json.Marshal(a.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO staff_accounts
			(id, username, display_name, password_hash, role, permissions, is_active, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, '', ?, ?)`,
		a.ID, a.Username, a.DisplayName, a.PasswordHash, string(a.Role), string(permissions),
		fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create staff account: %w", err)
	}
	return nil
}

// GetStaffAccountByUsername returns one account by its unique username.
func (s *Store) GetStaffAccountByUsername(ctx context.Context, username string) (*StaffAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, password_hash, role, permissions, is_active, last_login_at, created_at, updated_at
		FROM staff_accounts WHERE username = ?`, username)
	return scanStaffAccount(row)
}

// GetStaffAccount returns one account by ID.
func (s *Store) GetStaffAccount(ctx context.Context, id string) (*StaffAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, password_hash, role, permissions, is_active, last_login_at, created_at, updated_at
		FROM staff_accounts WHERE id = ?`, id)
	return scanStaffAccount(row)
}

// ListStaffAccounts returns all accounts in username order.
func (s *Store) ListStaffAccounts(ctx context.Context) ([]StaffAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, display_name, password_hash, role, permissions, is_active, last_login_at, created_at, updated_at
		FROM staff_accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]StaffAccount, 0)
	for rows.Next() {
		a, err := scanStaffAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// TouchStaffLogin records a successful login time.
func (s *Store) TouchStaffLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE staff_accounts SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		fmtTime(at), fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to record staff login: %w", err)
	}
	return requireAffected(res)
}

// SetStaffActive enables or disables an account.
func (s *Store) SetStaffActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE staff_accounts SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update staff account: %w", err)
	}
	return requireAffected(res)
}

// CountStaffAccounts reports how many accounts exist (used to seed the first
// admin on a fresh install).
func (s *Store) CountStaffAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff_accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count staff accounts: %w", err)
	}
	return n, nil
}

func scanStaffAccount(row rowScanner) (*StaffAccount, error) {
	var a StaffAccount
	var role, permissions, lastLogin, createdAt, updatedAt string
	var active int
	err := row.Scan(&a.ID, &a.Username, &a.DisplayName, &a.PasswordHash, &role,
		&permissions, &active, &lastLogin, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan staff account: %w", err)
	}
	a.Role = auth.ParseRole(role)
	if json.Unmarshal([]byte(permissions), &a.Permissions) != nil {
		a.Permissions = auth.PermissionsFor(a.Role)
	}
	a.IsActive = active != 0
	a.LastLoginAt = parseTime(lastLogin)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
