// ABOUTME: SQLite implementation of the conversation ledger using modernc.org/sqlite
// ABOUTME: Identity resolution with conflict recovery plus append-only turn history

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteLedger stores identities and turns in a SQLite database. It holds
// no in-process locks: correctness under concurrent callers is delegated to
// the storage layer's unique-constraint and autoincrement behavior.
type SQLiteLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteLedger opens (or creates) a ledger database at the given path.
// The schema is created if it doesn't exist. Parent directories are created
// as needed.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	logger := slog.Default().With("component", "ledger")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer at a time; funnel all access through a
	// single pooled connection so concurrent appends queue in the pool
	// instead of surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys so identity deletion cascades to turns
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	l := &SQLiteLedger{
		db:     db,
		logger: logger,
	}

	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("ledger initialized", "path", path)
	return l, nil
}

// createSchema creates the ledger tables if they don't exist.
// turns.seq is AUTOINCREMENT so sequence positions are assigned by the
// storage layer in commit order; the ledger never computes "next position"
// by reading max-so-far, which would race.
func (l *SQLiteLedger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS identities (
			id          TEXT PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS turns (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL UNIQUE,
			identity_id   TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
			model_variant TEXT NOT NULL,
			role          TEXT NOT NULL,
			content       TEXT NOT NULL,
			created_at    TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_turns_conversation
			ON turns(identity_id, model_variant, seq);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	l.logger.Info("closing ledger")
	return l.db.Close()
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// ResolveIdentity returns the identity bound to externalID, creating the
// binding if absent. Safe under concurrent first-time calls for the same
// externalID: if two callers race to create it, exactly one row persists
// and both callers return the same internal id. The recovery path is
// lookup, insert, and on a uniqueness conflict re-query the winner's row.
func (l *SQLiteLedger) ResolveIdentity(ctx context.Context, externalID string) (*Identity, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external_id is required")
	}
	if len(externalID) > MaxExternalIDLen {
		return nil, fmt.Errorf("external_id exceeds %d bytes", MaxExternalIDLen)
	}

	ident, err := l.LookupIdentity(ctx, externalID)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	candidate := &Identity{
		ID:         uuid.New().String(),
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}

	err = l.insertIdentity(ctx, candidate)
	if err == nil {
		l.logger.Debug("identity created", "internal_id", candidate.ID, "external_id", externalID)
		return candidate, nil
	}
	if !errors.Is(err, ErrDuplicateIdentity) {
		return nil, err
	}

	// Lost the creation race: a concurrent caller inserted the same
	// external_id between our lookup and insert. Discard the failed
	// candidate and return the winner's row.
	l.logger.Debug("identity insert hit duplicate, retrying lookup", "external_id", externalID)
	return l.LookupIdentity(ctx, externalID)
}

// insertIdentity attempts a unique insert, returning ErrDuplicateIdentity
// on a uniqueness conflict rather than the driver's error text.
func (l *SQLiteLedger) insertIdentity(ctx context.Context, ident *Identity) error {
	query := `
		INSERT INTO identities (id, external_id, created_at)
		VALUES (?, ?, ?)
	`

	_, err := l.db.ExecContext(ctx, query,
		ident.ID,
		ident.ExternalID,
		ident.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("inserting identity: %w", err)
	}
	return nil
}

// LookupIdentity retrieves an identity by external id without creating it.
// Returns ErrNotFound if no binding exists.
func (l *SQLiteLedger) LookupIdentity(ctx context.Context, externalID string) (*Identity, error) {
	query := `
		SELECT id, external_id, created_at
		FROM identities
		WHERE external_id = ?
	`

	return l.scanIdentity(l.db.QueryRowContext(ctx, query, externalID))
}

// GetIdentity retrieves an identity by internal id.
// Returns ErrNotFound if the identity doesn't exist.
func (l *SQLiteLedger) GetIdentity(ctx context.Context, internalID string) (*Identity, error) {
	query := `
		SELECT id, external_id, created_at
		FROM identities
		WHERE id = ?
	`

	return l.scanIdentity(l.db.QueryRowContext(ctx, query, internalID))
}

func (l *SQLiteLedger) scanIdentity(row *sql.Row) (*Identity, error) {
	var ident Identity
	var createdAtStr string

	err := row.Scan(&ident.ID, &ident.ExternalID, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying identity: %w", err)
	}

	ident.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &ident, nil
}

// AppendTurn appends a turn to the conversation for (internalID,
// modelVariant). The sequence position is assigned by the storage layer, so
// concurrent appends to the same conversation commit in a strict, stable
// order. Returns ErrNotFound if internalID is unknown; the ledger never
// implicitly creates identities here.
func (l *SQLiteLedger) AppendTurn(ctx context.Context, internalID, modelVariant string, role Role, content string) (*Turn, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if modelVariant == "" {
		return nil, fmt.Errorf("model_variant is required")
	}

	turn := &Turn{
		ID:           uuid.New().String(),
		IdentityID:   internalID,
		ModelVariant: modelVariant,
		Role:         role,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}

	// The INSERT..SELECT guard makes the existence check and the insert a
	// single statement, so a concurrent identity deletion cannot slip in
	// between them. Zero rows affected means the identity is unknown.
	query := `
		INSERT INTO turns (id, identity_id, model_variant, role, content, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM identities WHERE id = ?)
	`

	res, err := l.db.ExecContext(ctx, query,
		turn.ID,
		turn.IdentityID,
		turn.ModelVariant,
		string(turn.Role),
		turn.Content,
		turn.CreatedAt.Format(time.RFC3339),
		internalID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting turn: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	turn.Seq, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting sequence position: %w", err)
	}

	l.logger.Debug("turn appended",
		"turn_id", turn.ID,
		"internal_id", internalID,
		"model_variant", modelVariant,
		"role", role,
		"seq", turn.Seq,
	)
	return turn, nil
}

// History returns all turns for (internalID, modelVariant) ordered by
// sequence position ascending. A conversation with no turns yet yields an
// empty slice, not an error.
func (l *SQLiteLedger) History(ctx context.Context, internalID, modelVariant string) ([]*Turn, error) {
	query := `
		SELECT seq, id, identity_id, model_variant, role, content, created_at
		FROM turns
		WHERE identity_id = ? AND model_variant = ?
		ORDER BY seq ASC
	`

	return l.queryTurns(ctx, query, internalID, modelVariant)
}

// HistoryByExternalID returns the ordered turns for the conversation of the
// identity bound to externalID, without creating the identity. An unknown
// external id yields an empty slice.
func (l *SQLiteLedger) HistoryByExternalID(ctx context.Context, externalID, modelVariant string) ([]*Turn, error) {
	query := `
		SELECT t.seq, t.id, t.identity_id, t.model_variant, t.role, t.content, t.created_at
		FROM turns t
		JOIN identities i ON i.id = t.identity_id
		WHERE i.external_id = ? AND t.model_variant = ?
		ORDER BY t.seq ASC
	`

	return l.queryTurns(ctx, query, externalID, modelVariant)
}

// queryTurns is a helper that executes a query and scans turn rows.
func (l *SQLiteLedger) queryTurns(ctx context.Context, query string, args ...any) ([]*Turn, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var turn Turn
		var role, createdAtStr string

		if err := rows.Scan(
			&turn.Seq,
			&turn.ID,
			&turn.IdentityID,
			&turn.ModelVariant,
			&role,
			&turn.Content,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}

		turn.Role = Role(role)
		turn.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing turn created_at: %w", err)
		}

		turns = append(turns, &turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turn rows: %w", err)
	}

	return turns, nil
}

// DeleteIdentity removes an identity and, via the cascade, all its turns
// across every model variant. This is the only deletion path the ledger
// exposes; individual turns and conversations are never deleted.
// Returns ErrNotFound if the identity doesn't exist.
func (l *SQLiteLedger) DeleteIdentity(ctx context.Context, internalID string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, internalID)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	l.logger.Debug("identity deleted", "internal_id", internalID)
	return nil
}
