package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/outboundlabs/leadflow/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	company        TEXT NOT NULL,
	contact_name   TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	email_verified INTEGER NOT NULL DEFAULT 0,
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
	date_added     DATETIME NOT NULL,
	last_contact   DATETIME,
	email_1_sent   INTEGER NOT NULL DEFAULT 0,
	email_2_sent   INTEGER NOT NULL DEFAULT 0,
	email_3_sent   INTEGER NOT NULL DEFAULT 0,
	email_4_sent   INTEGER NOT NULL DEFAULT 0,
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
	summary      TEXT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const leadColumns = `id, company, contact_name, title, email, email_verified, phone, website,
	industry, employee_count, city, country, linkedin, source, notes, fingerprint,
	lead_score, status, external_id, date_added, last_contact,
	email_1_sent, email_2_sent, email_3_sent, email_4_sent, opens, clicks, response`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.StatusNew
	}
	if lead.DateAdded.IsZero() {
		lead.DateAdded = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Company, lead.ContactName, lead.Title, lead.Email, lead.EmailVerified,
		lead.Phone, lead.Website, lead.Industry, lead.EmployeeCount, lead.City, lead.Country,
		lead.LinkedIn, lead.Source, lead.Notes, lead.Fingerprint,
		lead.LeadScore, string(lead.Status), lead.ExternalID, lead.DateAdded, lead.LastContact,
		lead.EmailSent[0], lead.EmailSent[1], lead.EmailSent[2], lead.EmailSent[3],
		lead.Opens, lead.Clicks, lead.Response,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicateLead, "insert %s", lead.Company)
		}
		return eris.Wrap(err, "sqlite: insert lead")
	}
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	return scanLead(row)
}

func (s *SQLiteStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE email = ? AND email != ''`, email)
	return scanLead(row)
}

func (s *SQLiteStore) FindLeadByExternalID(ctx context.Context, externalID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE external_id = ? AND external_id != ''`, externalID)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeadsByStatus(ctx context.Context, status model.Status, limit int) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status = ? ORDER BY date_added ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads by status")
	}
	return collectLeads(rows)
}

func (s *SQLiteStore) ListLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads ORDER BY date_added ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	return collectLeads(rows)
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, id string, upd LeadUpdate) (*model.Lead, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin update")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err != nil {
		return nil, err
	}

	if err := applyUpdate(lead, upd); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE leads SET contact_name = ?, title = ?, email = ?, email_verified = ?,
		 phone = ?, website = ?, industry = ?, employee_count = ?, linkedin = ?, notes = ?,
		 lead_score = ?, status = ?, external_id = ?, last_contact = ?,
		 email_1_sent = ?, email_2_sent = ?, email_3_sent = ?, email_4_sent = ?,
		 opens = ?, clicks = ?, response = ?
		 WHERE id = ?`,
		lead.ContactName, lead.Title, lead.Email, lead.EmailVerified,
		lead.Phone, lead.Website, lead.Industry, lead.EmployeeCount, lead.LinkedIn, lead.Notes,
		lead.LeadScore, string(lead.Status), lead.ExternalID, lead.LastContact,
		lead.EmailSent[0], lead.EmailSent[1], lead.EmailSent[2], lead.EmailSent[3],
		lead.Opens, lead.Clicks, lead.Response, id,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, eris.Wrapf(ErrDuplicateLead, "update %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: update lead %s", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit update")
	}
	return lead, nil
}

func (s *SQLiteStore) IdentityPairs(ctx context.Context) ([]IdentityPair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint, email FROM leads`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: identity pairs")
	}
	defer rows.Close()

	var pairs []IdentityPair
	for rows.Next() {
		var p IdentityPair
		if err := rows.Scan(&p.Fingerprint, &p.Email); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identity pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, eris.Wrap(rows.Err(), "sqlite: identity pairs iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, completed_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, summary, started_at, completed_at FROM runs
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var summaryJSON sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.Status, &summaryJSON, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
			r.Summary = &model.RunSummary{}
			if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal summary")
			}
		}
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	defer rows.Close()

	stats := &model.Stats{ByStatus: make(map[model.Status]int)}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		stats.ByStatus[model.Status(status)] = count
		stats.TotalLeads += count
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: stats iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status string
	var lastContact sql.NullTime

	err := row.Scan(
		&l.ID, &l.Company, &l.ContactName, &l.Title, &l.Email, &l.EmailVerified,
		&l.Phone, &l.Website, &l.Industry, &l.EmployeeCount, &l.City, &l.Country,
		&l.LinkedIn, &l.Source, &l.Notes, &l.Fingerprint,
		&l.LeadScore, &status, &l.ExternalID, &l.DateAdded, &lastContact,
		&l.EmailSent[0], &l.EmailSent[1], &l.EmailSent[2], &l.EmailSent[3],
		&l.Opens, &l.Clicks, &l.Response,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	l.Status = model.Status(status)
	if lastContact.Valid {
		t := lastContact.Time
		l.LastContact = &t
	}
	return &l, nil
}

func collectLeads(rows *sql.Rows) ([]model.Lead, error) {
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}
