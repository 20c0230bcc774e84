package store

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

	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertBuildStmt     *sql.Stmt
	insertVariantStmt   *sql.Stmt
	getBuildStmt        *sql.Stmt
	variantsByBuildStmt *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			corpus TEXT NOT NULL,
			seed INTEGER NOT NULL,
			train_ratio REAL NOT NULL,
			total_sources INTEGER NOT NULL,
			skipped_json TEXT,
			train_size INTEGER NOT NULL,
			test_size INTEGER NOT NULL,
			config_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS build_variants (
			id TEXT PRIMARY KEY,
			build_id TEXT NOT NULL,
			variant TEXT NOT NULL,
			train_size INTEGER NOT NULL,
			test_size INTEGER NOT NULL,
			output_path TEXT NOT NULL,
			published INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(build_id) REFERENCES builds(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_build_variants_build_id ON build_variants(build_id)`,
		`CREATE INDEX IF NOT EXISTS idx_builds_corpus ON builds(corpus)`,
		`CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertBuildStmt,
			query: `
				INSERT INTO builds (
					id, started_at, finished_at, corpus, seed, train_ratio,
					total_sources, skipped_json, train_size, test_size, config_json
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert build: %w",
		},
		{
			dst: &s.insertVariantStmt,
			query: `
				INSERT INTO build_variants (
					id, build_id, variant, train_size, test_size, output_path, published, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert variant: %w",
		},
		{
			dst: &s.getBuildStmt,
			query: `
				SELECT id, started_at, finished_at, corpus, seed, train_ratio,
					total_sources, skipped_json, train_size, test_size, config_json
				FROM builds WHERE id = ?
			`,
			errFmt: "store: prepare get build: %w",
		},
		{
			dst: &s.variantsByBuildStmt,
			query: `
				SELECT id, build_id, variant, train_size, test_size, output_path, published, created_at
				FROM build_variants
				WHERE build_id = ?
				ORDER BY created_at ASC, variant ASC
			`,
			errFmt: "store: prepare get variants: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertBuildStmt,
		s.insertVariantStmt,
		s.getBuildStmt,
		s.variantsByBuildStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveBuild persists one pipeline run.
func (s *SQLiteStore) SaveBuild(ctx context.Context, build *BuildRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if build == nil {
		return errors.New("store: nil build")
	}

	id := strings.TrimSpace(build.ID)
	if id == "" {
		return errors.New("store: empty build id")
	}
	if build.StartedAt.IsZero() || build.FinishedAt.IsZero() {
		return errors.New("store: missing build timestamps")
	}
	if strings.TrimSpace(build.Corpus) == "" {
		return errors.New("store: missing corpus name")
	}

	skippedJSON, err := json.Marshal(build.Skipped)
	if err != nil {
		return fmt.Errorf("store: marshal skipped sources: %w", err)
	}

	cfgJSON := []byte("null")
	if build.Config != nil {
		cfgJSON, err = json.Marshal(build.Config)
		if err != nil {
			return fmt.Errorf("store: marshal build config: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin build tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertBuildStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		build.StartedAt.UTC().UnixMilli(),
		build.FinishedAt.UTC().UnixMilli(),
		build.Corpus,
		build.Seed,
		build.TrainRatio,
		build.TotalSources,
		string(skippedJSON),
		build.TrainSize,
		build.TestSize,
		string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert build: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit build: %w", err)
	}
	return nil
}

// SaveVariant persists one variant artifact record.
func (s *SQLiteStore) SaveVariant(ctx context.Context, v *VariantRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if v == nil {
		return errors.New("store: nil variant record")
	}

	id := strings.TrimSpace(v.ID)
	if id == "" {
		return errors.New("store: empty variant record id")
	}
	if strings.TrimSpace(v.BuildID) == "" {
		return errors.New("store: empty build id")
	}
	if strings.TrimSpace(v.Variant) == "" {
		return errors.New("store: missing variant name")
	}

	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	published := 0
	if v.Published {
		published = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin variant tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertVariantStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		v.BuildID,
		v.Variant,
		v.TrainSize,
		v.TestSize,
		v.OutputPath,
		published,
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert variant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit variant: %w", err)
	}
	return nil
}

// GetBuild loads a build by id.
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*BuildRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty build id")
	}

	row := s.getBuildStmt.QueryRowContext(ctx, id)
	build, err := scanBuildRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get build: %w", err)
	}
	return build, nil
}

// ListBuilds returns builds matching the filter, newest first.
func (s *SQLiteStore) ListBuilds(ctx context.Context, filter BuildFilter) ([]*BuildRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	corpus := strings.TrimSpace(filter.Corpus)
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, started_at, finished_at, corpus, seed, train_ratio,
		total_sources, skipped_json, train_size, test_size, config_json
		FROM builds WHERE 1=1`)

	var args []any
	if corpus != "" {
		sb.WriteString(` AND corpus = ?`)
		args = append(args, corpus)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND started_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND started_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list builds: %w", err)
	}
	defer rows.Close()

	var out []*BuildRecord
	for rows.Next() {
		build, err := scanBuildRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan build: %w", err)
		}
		out = append(out, build)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate builds: %w", err)
	}
	return out, nil
}

// GetVariants returns the variant artifacts of one build.
func (s *SQLiteStore) GetVariants(ctx context.Context, buildID string) ([]*VariantRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	buildID = strings.TrimSpace(buildID)
	if buildID == "" {
		return nil, errors.New("store: empty build id")
	}

	rows, err := s.variantsByBuildStmt.QueryContext(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("store: get variants: %w", err)
	}
	defer rows.Close()

	var out []*VariantRecord
	for rows.Next() {
		var (
			v           VariantRecord
			published   int
			createdAtMS int64
		)
		if err := rows.Scan(&v.ID, &v.BuildID, &v.Variant, &v.TrainSize, &v.TestSize, &v.OutputPath, &published, &createdAtMS); err != nil {
			return nil, fmt.Errorf("store: scan variant: %w", err)
		}
		v.Published = published != 0
		v.CreatedAt = time.UnixMilli(createdAtMS).UTC()
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate variants: %w", err)
	}
	return out, nil
}

func scanBuildRow(scan func(dest ...any) error) (*BuildRecord, error) {
	var (
		build        BuildRecord
		startedAtMS  int64
		finishedAtMS int64
		skippedJSON  sql.NullString
		cfgJSON      sql.NullString
	)
	if err := scan(
		&build.ID,
		&startedAtMS,
		&finishedAtMS,
		&build.Corpus,
		&build.Seed,
		&build.TrainRatio,
		&build.TotalSources,
		&skippedJSON,
		&build.TrainSize,
		&build.TestSize,
		&cfgJSON,
	); err != nil {
		return nil, err
	}

	build.StartedAt = time.UnixMilli(startedAtMS).UTC()
	build.FinishedAt = time.UnixMilli(finishedAtMS).UTC()

	if skippedJSON.Valid && strings.TrimSpace(skippedJSON.String) != "" {
		if err := json.Unmarshal([]byte(skippedJSON.String), &build.Skipped); err != nil {
			return nil, fmt.Errorf("decode skipped sources: %w", err)
		}
	}
	if cfgJSON.Valid && strings.TrimSpace(cfgJSON.String) != "" && cfgJSON.String != "null" {
		if err := json.Unmarshal([]byte(cfgJSON.String), &build.Config); err != nil {
			return nil, fmt.Errorf("decode build config: %w", err)
		}
	}
	return &build, nil
}
