package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/dealboard/internal/app"
	"github.com/hylla/dealboard/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens the board database at path, creating its directory and schema as needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, fileDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// fileDSN enables foreign keys on every pooled connection and lets writers from other
// processes wait for the lock instead of failing with SQLITE_BUSY.
func fileDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS board_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			name TEXT NOT NULL DEFAULT '',
			revision INTEGER NOT NULL DEFAULT 0
		);`,
		`INSERT OR IGNORE INTO board_meta(id) VALUES (1);`,
		`CREATE TABLE IF NOT EXISTS stages (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT 'gray',
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			stage_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			contact TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			message_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT '',
			value_cents INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL DEFAULT 'medium',
			temperature TEXT NOT NULL DEFAULT 'warm',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(stage_id) REFERENCES stages(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation TEXT NOT NULL,
			stage_id TEXT NOT NULL DEFAULT '',
			card_id TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stages_position ON stages(position);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_stage_position ON cards(stage_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_created_at ON change_events(created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// LoadBoard returns the pipeline name, its revision, and every stage in display order with
// its cards in position order, all from one read transaction.
func (r *Repository) LoadBoard(ctx context.Context) (app.StoredBoard, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return app.StoredBoard{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var out app.StoredBoard
	if err := tx.QueryRowContext(ctx, `SELECT name, revision FROM board_meta WHERE id = 1`).Scan(&out.Name, &out.Revision); err != nil {
		return app.StoredBoard{}, fmt.Errorf("read board meta: %w", err)
	}
	stages, err := loadStages(ctx, tx)
	if err != nil {
		return app.StoredBoard{}, err
	}
	out.Stages = stages
	return out, nil
}

// Revision returns the stored board revision.
func (r *Repository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := r.db.QueryRowContext(ctx, `SELECT revision FROM board_meta WHERE id = 1`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read board revision: %w", err)
	}
	return rev, nil
}

// queryerContext represents the read side shared by DB and Tx.
type queryerContext interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

// loadStages reads stages with their cards.
func loadStages(ctx context.Context, q queryerContext) ([]domain.Stage, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, color, created_at, updated_at
		FROM stages
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]domain.Stage, 0)
	byID := map[string]int{}
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		byID[stage.ID] = len(stages)
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cardRows, err := q.QueryContext(ctx, `
		SELECT id, stage_id, title, company, contact, tags_json, message_count, status, value_cents, priority, temperature, notes, created_at, updated_at
		FROM cards
		ORDER BY stage_id ASC, position ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer cardRows.Close()
	for cardRows.Next() {
		card, stageID, err := scanCard(cardRows)
		if err != nil {
			return nil, err
		}
		idx, ok := byID[stageID]
		if !ok {
			return nil, fmt.Errorf("card %s references unknown stage %s", card.ID, stageID)
		}
		stages[idx].Cards = append(stages[idx].Cards, card)
	}
	return stages, cardRows.Err()
}

// SaveChange writes one mutation footprint and its change event in a single transaction.
// The transaction first claims the next revision and fails with app.ErrRevisionConflict
// when change.Revision is no longer current.
func (r *Repository) SaveChange(ctx context.Context, change domain.BoardChange) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var name any
	if change.Name != nil {
		name = *change.Name
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE board_meta
		SET revision = revision + 1, name = COALESCE(?, name)
		WHERE id = 1 AND revision = ?
	`, name, change.Revision)
	if err != nil {
		return fmt.Errorf("claim board revision: %w", err)
	}
	if err = translateNoRows(res); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			err = fmt.Errorf("%w: expected revision %d", app.ErrRevisionConflict, change.Revision)
		}
		return err
	}

	for _, id := range change.DeletedCardIDs {
		if _, err = tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete card %s: %w", id, err)
		}
	}
	for _, id := range change.DeletedStageIDs {
		if _, err = tx.ExecContext(ctx, `DELETE FROM cards WHERE stage_id = ?`, id); err != nil {
			return fmt.Errorf("delete cards of stage %s: %w", id, err)
		}
		var res sql.Result
		res, err = tx.ExecContext(ctx, `DELETE FROM stages WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete stage %s: %w", id, err)
		}
		if err = translateNoRows(res); err != nil {
			return fmt.Errorf("delete stage %s: %w", id, err)
		}
	}
	for _, stage := range change.Stages {
		if _, err = tx.ExecContext(ctx, `DELETE FROM cards WHERE stage_id = ?`, stage.ID); err != nil {
			return fmt.Errorf("clear cards of stage %s: %w", stage.ID, err)
		}
	}
	for _, stage := range change.Stages {
		if err = upsertStage(ctx, tx, stage); err != nil {
			return err
		}
		for pos, card := range stage.Cards {
			if err = upsertCard(ctx, tx, stage.ID, pos, card); err != nil {
				return err
			}
		}
	}
	for pos, id := range change.Order {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `UPDATE stages SET position = ? WHERE id = ?`, pos, id)
		if err != nil {
			return fmt.Errorf("update stage position %s: %w", id, err)
		}
		if err = translateNoRows(res); err != nil {
			return fmt.Errorf("update stage position %s: %w", id, err)
		}
	}
	if err = insertChangeEvent(ctx, tx, change.Event); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// ListChangeEvents lists recent change events, newest first.
func (r *Repository) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation, stage_id, card_id, metadata_json, created_at
		FROM change_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &opRaw, &event.StageID, &event.CardID, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = domain.ChangeOperation(strings.TrimSpace(strings.ToLower(opRaw)))
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// upsertStage writes stage metadata. New stages are appended until an order update places them.
func upsertStage(ctx context.Context, execer execerContext, stage domain.Stage) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO stages(id, title, color, position, created_at, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM stages), ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			color = excluded.color,
			updated_at = excluded.updated_at
	`,
		stage.ID,
		stage.Title,
		string(stage.Color),
		ts(stage.CreatedAt),
		ts(stage.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert stage %s: %w", stage.ID, err)
	}
	return nil
}

// upsertCard writes one card row at its stage position.
func upsertCard(ctx context.Context, execer execerContext, stageID string, position int, card domain.Card) error {
	tags := card.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode card tags: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO cards(id, stage_id, position, title, company, contact, tags_json, message_count, status, value_cents, priority, temperature, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage_id = excluded.stage_id,
			position = excluded.position,
			title = excluded.title,
			company = excluded.company,
			contact = excluded.contact,
			tags_json = excluded.tags_json,
			message_count = excluded.message_count,
			status = excluded.status,
			value_cents = excluded.value_cents,
			priority = excluded.priority,
			temperature = excluded.temperature,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`,
		card.ID,
		stageID,
		position,
		card.Title,
		card.Company,
		card.Contact,
		string(tagsJSON),
		card.MessageCount,
		card.Status,
		card.ValueCents,
		string(card.Priority),
		string(card.Temperature),
		card.Notes,
		ts(card.CreatedAt),
		ts(card.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert card %s: %w", card.ID, err)
	}
	return nil
}

// insertChangeEvent inserts a change-event ledger record.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(operation, stage_id, card_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		string(event.Operation),
		event.StageID,
		event.CardID,
		string(metadataJSON),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// normalizeEventTS ensures event timestamps are always populated and UTC-normalized.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanStage handles scan stage.
func scanStage(s scanner) (domain.Stage, error) {
	var (
		stage      domain.Stage
		colorRaw   string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&stage.ID, &stage.Title, &colorRaw, &createdRaw, &updatedRaw); err != nil {
		return domain.Stage{}, err
	}
	stage.Color = domain.NormalizeColor(domain.Color(colorRaw))
	stage.CreatedAt = parseTS(createdRaw)
	stage.UpdatedAt = parseTS(updatedRaw)
	stage.Cards = []domain.Card{}
	return stage, nil
}

// scanCard handles scan card and reports the owning stage id.
func scanCard(s scanner) (domain.Card, string, error) {
	var (
		card           domain.Card
		stageID        string
		tagsRaw        string
		priorityRaw    string
		temperatureRaw string
		createdRaw     string
		updatedRaw     string
	)
	if err := s.Scan(
		&card.ID,
		&stageID,
		&card.Title,
		&card.Company,
		&card.Contact,
		&tagsRaw,
		&card.MessageCount,
		&card.Status,
		&card.ValueCents,
		&priorityRaw,
		&temperatureRaw,
		&card.Notes,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return domain.Card{}, "", err
	}
	if strings.TrimSpace(tagsRaw) == "" {
		tagsRaw = "[]"
	}
	if err := json.Unmarshal([]byte(tagsRaw), &card.Tags); err != nil {
		return domain.Card{}, "", fmt.Errorf("decode cards.tags_json: %w", err)
	}
	if card.Tags == nil {
		card.Tags = []string{}
	}
	card.Priority = domain.NormalizePriority(domain.Priority(priorityRaw))
	card.Temperature = domain.NormalizeTemperature(domain.Temperature(temperatureRaw))
	card.CreatedAt = parseTS(createdRaw)
	card.UpdatedAt = parseTS(updatedRaw)
	return card, stageID, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
