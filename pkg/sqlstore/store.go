// Package sqlstore implements the document gateway on a relational database through bun.
//
// All collections share one documents table keyed by (collection, id) with the
// document body stored as JSON text. Filters are pushed down as dialect JSON
// path predicates where possible and always re-checked locally with core.Match,
// so every backend answers exactly like the in-memory store.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/logger"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// documentRow is one stored document. Seq records insertion order.
type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	CreatedAt  time.Time `bun:"created_at,notnull"`
	Collection string    `bun:"collection,notnull,unique:documents_key,type:varchar(255)"`
	ID         string    `bun:"id,notnull,unique:documents_key,type:varchar(64)"`
	Data       string    `bun:"data,type:text,notnull"`
	Seq        int64     `bun:"seq,pk,autoincrement"`
}

// Config describes how to open a Store
type Config struct {
	Logger        *slog.Logger
	NewID         func() string
	Driver        string
	DSN           string
	SlowQueryTime time.Duration
	MaxOpenConns  int
	Debug         bool
}

// Store keeps documents in a SQL database
type Store struct {
	db      *bun.DB
	logger  *slog.Logger
	newID   func() string
	dialect dialect.Name
}

var _ core.Gateway = (*Store)(nil)

// Open connects to the configured database
func Open(cfg Config) (*Store, error) {
	var (
		sqlDB *sql.DB
		db    *bun.DB
		err   error
	)

	switch cfg.Driver {
	case DriverSQLite, "sqlite3":
		sqlDB, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err == nil {
			db = bun.NewDB(sqlDB, sqlitedialect.New())
		}
	case DriverPostgres, "postgresql":
		sqlDB, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			db = bun.NewDB(sqlDB, pgdialect.New())
		}
	case DriverMySQL:
		sqlDB, err = sql.Open("mysql", cfg.DSN)
		if err == nil {
			db = bun.NewDB(sqlDB, mysqldialect.New())
		}
	default:
		return nil, fmt.Errorf("%w: sql driver %q", errors.ErrUnsupportedBackend, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}

	store := New(db, cfg.Logger, cfg.NewID)
	if cfg.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: cfg.SlowQueryTime, logger: store.logger})
	}
	return store, nil
}

// New wraps an existing bun database
func New(db *bun.DB, log *slog.Logger, newID func() string) *Store {
	if log == nil {
		log = logger.Nop()
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Store{
		db:      db,
		logger:  log,
		newID:   newID,
		dialect: db.Dialect().Name(),
	}
}

// DB returns the underlying bun database
func (s *Store) DB() *bun.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the documents table when it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*documentRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// QueryCollection selects the collection rows in insertion order, pushing down
// what the dialect can express, then evaluates the full filter, ordering and cap locally
func (s *Store) QueryCollection(ctx context.Context, query *core.CompiledQuery) ([]core.Document, error) {
	var rows []documentRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("d.collection = ?", query.Collection).
		OrderExpr("d.seq ASC")

	if query.Filter != nil {
		comp := compiler{dialect: s.dialect}
		if frag, args, ok := comp.compile(query.Filter); ok {
			q = q.Where("("+frag+")", args...)
		}
	} else if query.Limit > 0 && len(query.OrderBy) == 0 {
		q = q.Limit(query.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", query.Collection, err)
	}

	docs := make([]core.Document, 0, len(rows))
	for i := range rows {
		doc, err := decodeRow(&rows[i])
		if err != nil {
			return nil, err
		}
		if core.Match(query.Filter, doc) {
			docs = append(docs, doc)
		}
	}

	s.logger.DebugContext(ctx, "queried collection",
		slog.String("collection", query.Collection),
		slog.Int("rows", len(rows)),
		slog.Int("matched", len(docs)),
	)

	core.SortDocuments(docs, query.OrderBy)
	if query.Limit > 0 && len(docs) > query.Limit {
		docs = docs[:query.Limit]
	}
	return docs, nil
}

// ReadDocument selects one row
func (s *Store) ReadDocument(ctx context.Context, collection, id string) (core.Document, bool, error) {
	row, found, err := s.readRow(ctx, s.db, collection, id)
	if err != nil || !found {
		return nil, found, err
	}
	doc, err := decodeRow(row)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// CreateDocument inserts a row under a new id
func (s *Store) CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error) {
	body, err := encodeBody(data)
	if err != nil {
		return "", err
	}

	row := &documentRow{
		Collection: collection,
		ID:         s.newID(),
		Data:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return row.ID, nil
}

// UpdateDocument merges top-level fields into an existing row
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, data map[string]any) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row, found, err := s.readRow(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrItemNotFound
		}

		body, err := core.UnmarshalObject([]byte(row.Data))
		if err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}
		for k, v := range data {
			if k == core.IdentityField {
				continue
			}
			body[k] = v
		}
		if row.Data, err = encodeBody(body); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model(row).
			Column("data").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

// DeleteDocument removes a row
func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	res, err := s.db.NewDelete().
		Model((*documentRow)(nil)).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return errors.ErrItemNotFound
	}
	return nil
}

func (s *Store) readRow(ctx context.Context, db bun.IDB, collection, id string) (*documentRow, bool, error) {
	row := new(documentRow)
	err := db.NewSelect().
		Model(row).
		Where("d.collection = ?", collection).
		Where("d.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	return row, true, nil
}

func encodeBody(data map[string]any) (string, error) {
	body := make(map[string]any, len(data))
	for k, v := range data {
		if k == core.IdentityField {
			continue
		}
		body[k] = v
	}
	raw, err := json.Marshal(core.EncodeDocument(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrUnsupportedType, err)
	}
	return string(raw), nil
}

func decodeRow(row *documentRow) (core.Document, error) {
	body, err := core.UnmarshalObject([]byte(row.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", row.Collection, row.ID, err)
	}
	return core.DecodeDocument(row.ID, body), nil
}
