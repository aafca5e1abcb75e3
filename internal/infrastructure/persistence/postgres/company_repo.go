package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-portal/portal-core/internal/domain/company"
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// CompanyRepository implements company.Repository for PostgreSQL.
type CompanyRepository struct {
	conn *Connection
}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository(conn *Connection) *CompanyRepository {
	return &CompanyRepository{conn: conn}
}

// FindByName returns the lowest-id profile with exactly this name.
func (r *CompanyRepository) FindByName(ctx context.Context, name string) (*company.Profile, error) {
	query := `
		SELECT id, name, required_skills, updated_at
		FROM company_profiles
		WHERE name = $1
		ORDER BY id
		LIMIT 1
	`

	var p company.Profile
	err := r.conn.QueryRow(ctx, query, name).Scan(&p.ID, &p.Name, &p.RequiredSkills, &p.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to find company profile: %w", err)
	}

	return &p, nil
}

// Upsert replaces the lowest-id profile with the same name, or inserts one.
func (r *CompanyRepository) Upsert(ctx context.Context, p *company.Profile) error {
	skills := p.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	now := time.Now().UTC()

	return r.conn.InTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM company_profiles WHERE name = $1 ORDER BY id LIMIT 1 FOR UPDATE`,
			p.Name,
		).Scan(&id)

		switch {
		case err == nil:
			_, err = tx.Exec(ctx,
				`UPDATE company_profiles SET required_skills = $1, updated_at = $2 WHERE id = $3`,
				skills, now, id,
			)
			if err != nil {
				return fmt.Errorf("failed to update company profile: %w", err)
			}
		case IsNoRows(err):
			err = tx.QueryRow(ctx,
				`INSERT INTO company_profiles (name, required_skills, updated_at) VALUES ($1, $2, $3) RETURNING id`,
				p.Name, skills, now,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to insert company profile: %w", err)
			}
		default:
			return fmt.Errorf("failed to look up company profile: %w", err)
		}

		p.ID = id
		p.UpdatedAt = now
		return nil
	})
}
