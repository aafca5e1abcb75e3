package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	sql     string
}

// schema is applied in order. Never edit an applied step; append a new one.
var schema = []migration{
	{1, "create_students", migration001Up},
	{2, "create_company_profiles", migration002Up},
	{3, "create_user_accounts", migration003Up},
	{4, "student_change_notifications", migration004Up},
}

// Migrator applies the embedded schema.
type Migrator struct {
	conn  *Connection
	steps []migration
}

// NewMigrator creates a migrator for conn.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, steps: schema}
}

// Migrate applies every step not yet recorded in schema_migrations, each in
// its own transaction. A session advisory lock keeps concurrently starting
// instances from racing.
func (m *Migrator) Migrate(ctx context.Context) error {
	if _, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	for _, step := range m.steps {
		err := m.conn.InTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('schema_migrations'))`); err != nil {
				return err
			}

			var applied bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, step.version,
			).Scan(&applied); err != nil {
				return err
			}
			if applied {
				return nil
			}

			if _, err := tx.Exec(ctx, step.sql); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, step.version, step.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: migration %03d %s: %w", step.version, step.name, err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Student records keyed by the owning account id.
-- Source numeric fields stay nullable: NULL is "never written", which is not 0.
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    roll_number TEXT NOT NULL DEFAULT '',
    branch TEXT NOT NULL DEFAULT '',
    photo_url TEXT,

    attendance_percent DOUBLE PRECISION,
    cgpa DOUBLE PRECISION,
    internal_marks_percent DOUBLE PRECISION,
    resume_score DOUBLE PRECISION,
    skills TEXT[] NOT NULL DEFAULT '{}',
    internships JSONB NOT NULL DEFAULT '[]'::jsonb,

    -- Derived fields, written only by the pipeline
    risk_score INTEGER,
    risk_level TEXT,
    placement_readiness_score INTEGER,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_risk_score CHECK (risk_score IS NULL OR (risk_score >= 0 AND risk_score <= 100)),
    CONSTRAINT valid_risk_level CHECK (risk_level IS NULL OR risk_level IN ('High Risk', 'Moderate Risk', 'Safe'))
);

CREATE INDEX IF NOT EXISTS idx_students_roll_number ON students(roll_number);
CREATE INDEX IF NOT EXISTS idx_students_branch ON students(branch);
CREATE INDEX IF NOT EXISTS idx_students_risk_level ON students(risk_level) WHERE risk_level IS NOT NULL;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE COMPANY PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Employer skill requirements. Names are not unique; lookups take the lowest id.
CREATE TABLE IF NOT EXISTS company_profiles (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    required_skills TEXT[] NOT NULL DEFAULT '{}',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_company_profiles_name_id ON company_profiles(name, id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE USER ACCOUNTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Role and branch mirror the identity claim set, which is authoritative.
CREATE TABLE IF NOT EXISTS user_accounts (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    password_hash TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    branch TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('', 'Admin', 'Faculty', 'Student'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_user_accounts_email ON user_accounts(LOWER(email));
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: STUDENT CHANGE NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Range checks for the scored inputs. NaN sorts above every number in
-- Postgres, so it fails BETWEEN like the infinities do. NOT VALID leaves
-- rows written before this migration alone.
ALTER TABLE students
    ADD CONSTRAINT valid_attendance_percent CHECK (attendance_percent IS NULL OR attendance_percent BETWEEN 0 AND 100) NOT VALID,
    ADD CONSTRAINT valid_cgpa CHECK (cgpa IS NULL OR cgpa BETWEEN 0 AND 10) NOT VALID,
    ADD CONSTRAINT valid_internal_marks_percent CHECK (internal_marks_percent IS NULL OR internal_marks_percent BETWEEN 0 AND 100) NOT VALID,
    ADD CONSTRAINT valid_resume_score CHECK (resume_score IS NULL OR resume_score BETWEEN 0 AND 100) NOT VALID;

-- Every committed change to a risk input is announced on student_changes,
-- whichever client made it. The payload carries only the id and the risk
-- inputs: NOTIFY payloads are capped at 8000 bytes and a full row with skills
-- and internships can exceed that.
CREATE OR REPLACE FUNCTION notify_student_change() RETURNS trigger AS $$
DECLARE
    before_sources JSON;
    after_sources  JSON;
BEGIN
    before_sources := json_build_object(
        'attendance_percent', OLD.attendance_percent,
        'cgpa', OLD.cgpa,
        'internal_marks_percent', OLD.internal_marks_percent);

    IF TG_OP = 'UPDATE' THEN
        after_sources := json_build_object(
            'attendance_percent', NEW.attendance_percent,
            'cgpa', NEW.cgpa,
            'internal_marks_percent', NEW.internal_marks_percent);
    END IF;

    PERFORM pg_notify('student_changes', json_build_object(
        'id', OLD.id,
        'before', before_sources,
        'after', after_sources)::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS students_notify_update ON students;
CREATE TRIGGER students_notify_update
    AFTER UPDATE ON students
    FOR EACH ROW
    WHEN (OLD.attendance_percent IS DISTINCT FROM NEW.attendance_percent
       OR OLD.cgpa IS DISTINCT FROM NEW.cgpa
       OR OLD.internal_marks_percent IS DISTINCT FROM NEW.internal_marks_percent)
    EXECUTE FUNCTION notify_student_change();

DROP TRIGGER IF EXISTS students_notify_delete ON students;
CREATE TRIGGER students_notify_delete
    AFTER DELETE ON students
    FOR EACH ROW
    EXECUTE FUNCTION notify_student_change();
`
