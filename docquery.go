// Package docquery is a fluent query builder over document stores.
//
// Import path:
//
//	import "github.com/theory-cloud/docquery"
//
// Open picks the backend named in the configuration (memory, DynamoDB, SQL
// through bun, or Firestore) and hands out query builders bound to it:
//
//	db, err := docquery.Open(ctx, session.DefaultConfig())
//	adults, err := db.Collection("users").Where("age", ">=", 18).OrderBy("name").Get(ctx)
package docquery

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/theory-cloud/docquery/pkg/auth"
	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/dynamo"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/firestore"
	"github.com/theory-cloud/docquery/pkg/logger"
	"github.com/theory-cloud/docquery/pkg/memstore"
	"github.com/theory-cloud/docquery/pkg/query"
	"github.com/theory-cloud/docquery/pkg/request"
	"github.com/theory-cloud/docquery/pkg/session"
	"github.com/theory-cloud/docquery/pkg/sqlstore"
)

type (
	// Re-export types for convenience.
	Config    = session.Config
	Document  = core.Document
	Reference = core.Reference
	Builder   = query.Builder
	QuerySpec = request.QuerySpec
)

// DB binds query builders to one opened backend
type DB struct {
	gateway   core.Gateway
	logger    *slog.Logger
	cfg       *session.Config
	dynamo    *dynamo.Gateway
	closer    func() error
	queryOpts []query.Option
}

// Option adjusts Open
type Option func(*openOptions)

type openOptions struct {
	logOutput io.Writer
	logger    *slog.Logger
	newID     func() string
}

// WithLogOutput sends the configured logger's output to w instead of stderr
func WithLogOutput(w io.Writer) Option {
	return func(o *openOptions) { o.logOutput = w }
}

// WithLogger replaces the logger built from the configuration
func WithLogger(l *slog.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithIDGenerator overrides document identity generation on backends that
// assign identities client side (memory, DynamoDB, SQL)
func WithIDGenerator(fn func() string) Option {
	return func(o *openOptions) { o.newID = fn }
}

// Open validates cfg and connects to its backend. A nil cfg opens an in-memory store.
func Open(ctx context.Context, cfg *session.Config, opts ...Option) (*DB, error) {
	if cfg == nil {
		cfg = session.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = logger.New(logger.Config{Output: o.logOutput, Level: cfg.LogLevel, Format: cfg.LogFormat})
	}

	db := &DB{cfg: cfg, logger: log, closer: func() error { return nil }}

	switch cfg.Backend {
	case session.BackendMemory, "":
		db.gateway = memstore.New(memstore.WithIDGenerator(o.newID))

	case session.BackendDynamoDB:
		sess, err := session.NewSession(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := sess.Client()
		if err != nil {
			return nil, err
		}
		db.dynamo = dynamo.New(client, dynamo.Options{
			Logger:         log,
			NewID:          o.newID,
			TablePrefix:    cfg.TablePrefix,
			ConsistentRead: cfg.ConsistentRead,
		})
		db.gateway = db.dynamo

	case session.BackendSQL:
		store, err := sqlstore.Open(sqlstore.Config{
			Logger: log,
			NewID:  o.newID,
			Driver: cfg.SQLDriver,
			DSN:    cfg.SQLDSN,
			Debug:  cfg.SQLDebug,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		db.gateway = store
		db.closer = store.Close

	case session.BackendFirestore:
		gw, err := firestore.Open(ctx, firestore.Config{
			Logger:          log,
			ProjectID:       cfg.FirestoreProject,
			CredentialsFile: cfg.FirestoreCredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		db.gateway = gw
		db.closer = gw.Close

	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedBackend, cfg.Backend)
	}

	db.queryOpts = queryOptions(cfg, log)
	log.DebugContext(ctx, "opened backend", slog.String("backend", db.Backend()))
	return db, nil
}

// NewWithGateway binds builders to an existing gateway, for example a
// memstore.Store in tests
func NewWithGateway(gateway core.Gateway, cfg *session.Config, log *slog.Logger) *DB {
	if cfg == nil {
		cfg = session.DefaultConfig()
	}
	log = logger.OrDefault(log)
	return &DB{
		gateway:   gateway,
		logger:    log,
		cfg:       cfg,
		closer:    func() error { return nil },
		queryOpts: queryOptions(cfg, log),
	}
}

func queryOptions(cfg *session.Config, log *slog.Logger) []query.Option {
	opts := []query.Option{query.WithLogger(log)}
	if cfg.PopulateConcurrency > 0 {
		opts = append(opts, query.WithPopulateConcurrency(cfg.PopulateConcurrency))
	}
	if cfg.ReferenceCacheSize > 0 {
		opts = append(opts, query.WithReferenceCache(cfg.ReferenceCacheSize))
	}
	return opts
}

// Collection starts a builder over a whole collection
func (db *DB) Collection(name string, opts ...query.Option) *query.Builder {
	return query.New(db.gateway, name, db.options(opts)...)
}

// Doc starts a builder scoped to one document
func (db *DB) Doc(collection, id string, opts ...query.Option) *query.Builder {
	return query.NewDocument(db.gateway, collection, id, db.options(opts)...)
}

func (db *DB) options(extra []query.Option) []query.Option {
	if len(extra) == 0 {
		return db.queryOpts
	}
	return append(append([]query.Option{}, db.queryOpts...), extra...)
}

// Run executes a query described as data
func (db *DB) Run(ctx context.Context, spec *request.QuerySpec) ([]core.Document, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec.Builder(db.gateway, db.queryOpts...).Get(ctx)
}

// Auth returns an account service storing users in this backend
func (db *DB) Auth(opts auth.Options) (*auth.Service, error) {
	if opts.Logger == nil {
		opts.Logger = db.logger
	}
	return auth.NewService(db.gateway, opts)
}

// EnsureCollection prepares storage for a collection. It creates the DynamoDB
// table when missing and reports whether it did; other backends need no setup.
func (db *DB) EnsureCollection(ctx context.Context, name string) (bool, error) {
	if db.dynamo == nil {
		return false, nil
	}
	return db.dynamo.EnsureTable(ctx, name)
}

// Gateway returns the backend gateway
func (db *DB) Gateway() core.Gateway {
	return db.gateway
}

// Logger returns the logger builders report to
func (db *DB) Logger() *slog.Logger {
	return db.logger
}

// Config returns the configuration the DB was opened with
func (db *DB) Config() *session.Config {
	return db.cfg
}

// Backend names the opened backend
func (db *DB) Backend() string {
	if db.cfg.Backend == "" {
		return session.BackendMemory
	}
	return db.cfg.Backend
}

// Close releases backend connections
func (db *DB) Close() error {
	return db.closer()
}
