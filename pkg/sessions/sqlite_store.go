package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	spec TEXT NOT NULL DEFAULT '',
	messages TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_updated
	ON sessions(user_id, updated_at DESC);
`

type sessionRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Spec        string    `db:"spec"`
	Messages    string    `db:"messages"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r sessionRow) toSession() (skill.Session, error) {
	var messages []skill.GenerationTurn
	if r.Messages != "" {
		if err := json.Unmarshal([]byte(r.Messages), &messages); err != nil {
			return skill.Session{}, errors.Wrap(err, "failed to unmarshal session messages")
		}
	}
	return skill.Session{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Spec:        r.Spec,
		Messages:    messages,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// SQLiteStore implements Store on a SQLite database. Every query is scoped
// to the owning identity; one database file serves all users of a machine.
type SQLiteStore struct {
	db     *sqlx.DB
	userID string
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// scopes the store to userID.
func NewSQLiteStore(ctx context.Context, dbPath, userID string) (*SQLiteStore, error) {
	if userID == "" {
		return nil, errors.New("user id is required for the identity-backed store")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := configureDatabase(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return &SQLiteStore{db: db, userID: userID}, nil
}

// configureDatabase sets up SQLite pragmas for WAL mode operation.
func configureDatabase(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		pragmaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := db.ExecContext(pragmaCtx, pragma)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled, current mode: %s", journalMode)
	}
	return nil
}

// List returns the identity's sessions newest-first.
func (s *SQLiteStore) List(ctx context.Context) ([]skill.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM sessions WHERE user_id = ? ORDER BY updated_at DESC`, s.userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	sessions := make([]skill.Session, 0, len(rows))
	for _, row := range rows {
		session, err := row.toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Get returns the identity's session with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (skill.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM sessions WHERE id = ? AND user_id = ?`, id, s.userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return skill.Session{}, errors.Wrapf(ErrNotFound, "id %s", id)
		}
		return skill.Session{}, errors.Wrap(err, "failed to get session")
	}
	return row.toSession()
}

// Create stores a new session for the identity.
func (s *SQLiteStore) Create(ctx context.Context, session skill.Session) (skill.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Title == "" {
		session.Title = skill.DeriveTitle(session.Description)
	}

	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return skill.Session{}, errors.Wrap(err, "failed to marshal session messages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, title, description, spec, messages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, s.userID, session.Title, session.Description, session.Spec,
		string(messages), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return skill.Session{}, errors.Wrap(err, "failed to insert session")
	}
	return session, nil
}

// Update replaces the identity's session record.
func (s *SQLiteStore) Update(ctx context.Context, session skill.Session) (skill.Session, error) {
	session.UpdatedAt = time.Now()

	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return skill.Session{}, errors.Wrap(err, "failed to marshal session messages")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, description = ?, spec = ?, messages = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		session.Title, session.Description, session.Spec, string(messages),
		session.UpdatedAt, session.ID, s.userID)
	if err != nil {
		return skill.Session{}, errors.Wrap(err, "failed to update session")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return skill.Session{}, errors.Wrap(err, "failed to check update result")
	}
	if affected == 0 {
		return skill.Session{}, errors.Wrapf(ErrNotFound, "id %s", session.ID)
	}
	return session, nil
}

// Delete removes the identity's session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, s.userID)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check delete result")
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
