package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

const accountColumns = `id, email, password_hash, role, branch, created_at, updated_at`

// AccountRepository implements account.Repository for PostgreSQL.
type AccountRepository struct {
	conn *Connection
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(conn *Connection) *AccountRepository {
	return &AccountRepository{conn: conn}
}

// GetByID returns the account with the given id.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM user_accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByEmail returns the account with the given email, compared case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM user_accounts WHERE LOWER(email) = LOWER($1)`, email)
	return scanAccount(row)
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	now := time.Now().UTC()
	_, err := r.conn.Exec(ctx,
		`INSERT INTO user_accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Email, a.PasswordHash, string(a.Role), a.Branch, now, now,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("account", "Create", shared.ErrAlreadyExists, "user account already exists")
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

// UpdateRole overwrites the mirrored role and branch.
func (r *AccountRepository) UpdateRole(ctx context.Context, id string, role account.Role, branch string) error {
	result, err := r.conn.Exec(ctx,
		`UPDATE user_accounts SET role = $1, branch = $2, updated_at = $3 WHERE id = $4`,
		string(role), branch, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update account role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}

	return nil
}

// List returns a page of accounts ordered by id.
func (r *AccountRepository) List(ctx context.Context, afterID string, limit int) ([]*account.Account, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.conn.Query(ctx,
		`SELECT `+accountColumns+` FROM user_accounts WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		a    account.Account
		role string
	)

	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.Branch, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.Role = account.Role(role)
	return &a, nil
}
