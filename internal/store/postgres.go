package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/outboundlabs/leadflow/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	company        TEXT NOT NULL,
	contact_name   TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	email_verified BOOLEAN NOT NULL DEFAULT false,
	phone          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	employee_count INTEGER NOT NULL DEFAULT 0,
	city           TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL DEFAULT '',
	linkedin       TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	fingerprint    TEXT NOT NULL,
	lead_score     INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'New',
	external_id    TEXT NOT NULL DEFAULT '',
	date_added     TIMESTAMPTZ NOT NULL,
	last_contact   TIMESTAMPTZ,
	email_1_sent   BOOLEAN NOT NULL DEFAULT false,
	email_2_sent   BOOLEAN NOT NULL DEFAULT false,
	email_3_sent   BOOLEAN NOT NULL DEFAULT false,
	email_4_sent   BOOLEAN NOT NULL DEFAULT false,
	opens          INTEGER NOT NULL DEFAULT 0,
	clicks         INTEGER NOT NULL DEFAULT 0,
	response       TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_fingerprint ON leads(fingerprint);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email != '';
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_external_id ON leads(external_id);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      JSONB,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.StatusNew
	}
	if lead.DateAdded.IsZero() {
		lead.DateAdded = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (`+leadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		lead.ID, lead.Company, lead.ContactName, lead.Title, lead.Email, lead.EmailVerified,
		lead.Phone, lead.Website, lead.Industry, lead.EmployeeCount, lead.City, lead.Country,
		lead.LinkedIn, lead.Source, lead.Notes, lead.Fingerprint,
		lead.LeadScore, string(lead.Status), lead.ExternalID, lead.DateAdded, lead.LastContact,
		lead.EmailSent[0], lead.EmailSent[1], lead.EmailSent[2], lead.EmailSent[3],
		lead.Opens, lead.Clicks, lead.Response,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicateLead, "insert %s", lead.Company)
		}
		return eris.Wrap(err, "postgres: insert lead")
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanPgLead(row)
}

func (s *PostgresStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE email = $1 AND email != ''`, email)
	return scanPgLead(row)
}

func (s *PostgresStore) FindLeadByExternalID(ctx context.Context, externalID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE external_id = $1 AND external_id != ''`, externalID)
	return scanPgLead(row)
}

func (s *PostgresStore) ListLeadsByStatus(ctx context.Context, status model.Status, limit int) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status = $1 ORDER BY date_added ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads by status")
	}
	return collectPgLeads(rows)
}

func (s *PostgresStore) ListLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads ORDER BY date_added ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	return collectPgLeads(rows)
}

func (s *PostgresStore) UpdateLead(ctx context.Context, id string, upd LeadUpdate) (*model.Lead, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin update")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanPgLead(row)
	if err != nil {
		return nil, err
	}

	if err := applyUpdate(lead, upd); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE leads SET contact_name = $1, title = $2, email = $3, email_verified = $4,
		 phone = $5, website = $6, industry = $7, employee_count = $8, linkedin = $9, notes = $10,
		 lead_score = $11, status = $12, external_id = $13, last_contact = $14,
		 email_1_sent = $15, email_2_sent = $16, email_3_sent = $17, email_4_sent = $18,
		 opens = $19, clicks = $20, response = $21
		 WHERE id = $22`,
		lead.ContactName, lead.Title, lead.Email, lead.EmailVerified,
		lead.Phone, lead.Website, lead.Industry, lead.EmployeeCount, lead.LinkedIn, lead.Notes,
		lead.LeadScore, string(lead.Status), lead.ExternalID, lead.LastContact,
		lead.EmailSent[0], lead.EmailSent[1], lead.EmailSent[2], lead.EmailSent[3],
		lead.Opens, lead.Clicks, lead.Response, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, eris.Wrapf(ErrDuplicateLead, "update %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: update lead %s", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit update")
	}
	return lead, nil
}

func (s *PostgresStore) IdentityPairs(ctx context.Context) ([]IdentityPair, error) {
	rows, err := s.pool.Query(ctx, `SELECT fingerprint, email FROM leads`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: identity pairs")
	}
	defer rows.Close()

	var pairs []IdentityPair
	for rows.Next() {
		var p IdentityPair
		if err := rows.Scan(&p.Fingerprint, &p.Email); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identity pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, eris.Wrap(rows.Err(), "postgres: identity pairs iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, string(kind), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, completed_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, status, summary, started_at, completed_at FROM runs
		 ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var summaryJSON []byte
		if err := rows.Scan(&r.ID, &r.Kind, &r.Status, &summaryJSON, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(summaryJSON) > 0 && string(summaryJSON) != "null" {
			r.Summary = &model.RunSummary{}
			if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	defer rows.Close()

	stats := &model.Stats{ByStatus: make(map[model.Status]int)}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		stats.ByStatus[model.Status(status)] = count
		stats.TotalLeads += count
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats iterate")
}

// helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var status string

	err := row.Scan(
		&l.ID, &l.Company, &l.ContactName, &l.Title, &l.Email, &l.EmailVerified,
		&l.Phone, &l.Website, &l.Industry, &l.EmployeeCount, &l.City, &l.Country,
		&l.LinkedIn, &l.Source, &l.Notes, &l.Fingerprint,
		&l.LeadScore, &status, &l.ExternalID, &l.DateAdded, &l.LastContact,
		&l.EmailSent[0], &l.EmailSent[1], &l.EmailSent[2], &l.EmailSent[3],
		&l.Opens, &l.Clicks, &l.Response,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	l.Status = model.Status(status)
	return &l, nil
}

func collectPgLeads(rows pgx.Rows) ([]model.Lead, error) {
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}
