// Package postgres stores artifacts in PostgreSQL as one jsonb document per
// row, with the alias dedup keys in a GIN-indexed text array.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "artifacts"

const uniqueViolation = "23505"

var tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Config selects the database and table.
type Config struct {
	URL   string
	Table string
}

// Store is a PostgreSQL-backed artifact.Store.
type Store struct {
	pool  *pgxpool.Pool
	table string
	psql  sq.StatementBuilderType
	owned bool
}

// Open connects to cfg.URL and creates the table if needed. The returned
// store owns the pool.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := New(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller keeps ownership of it.
func New(pool *pgxpool.Pool, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{
		pool:  pool,
		table: table,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// EnsureSchema creates the table and its alias index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id         text PRIMARY KEY,
	version    bigint NOT NULL,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL,
	alias_keys text[] NOT NULL,
	doc        jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_alias_keys ON %[1]s USING gin (alias_keys);`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func encode(a *artifact.Artifact) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	return string(data), nil
}

func decode(doc []byte, version int64) (*artifact.Artifact, error) {
	var a artifact.Artifact
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	a.Version = version
	if a.Biblio == nil {
		a.Biblio = make(map[string]artifact.BiblioField)
	}
	return &a, nil
}

func (s *Store) selectDocs() sq.SelectBuilder {
	return s.psql.Select("doc", "version").From(s.table)
}

func (s *Store) queryOne(ctx context.Context, q sq.SelectBuilder) (*artifact.Artifact, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var (
		doc     []byte
		version int64
	)
	err = s.pool.QueryRow(ctx, query, args...).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact: %w", err)
	}
	return decode(doc, version)
}

func (s *Store) Get(ctx context.Context, id string) (*artifact.Artifact, error) {
	return s.queryOne(ctx, s.selectDocs().Where(sq.Eq{"id": id}))
}

func (s *Store) Create(ctx context.Context, a *artifact.Artifact) error {
	a.Version = 1
	doc, err := encode(a)
	if err != nil {
		return err
	}
	query, args, err := s.psql.Insert(s.table).
		Columns("id", "version", "created_at", "updated_at", "alias_keys", "doc").
		Values(a.ID, a.Version, a.CreatedAt, a.UpdatedAt, a.AliasKeys(), doc).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		a.Version = 0
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create %s: %w", a.ID, artifact.ErrConflict)
		}
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, a *artifact.Artifact) error {
	next := a.Clone()
	next.Version = a.Version + 1
	doc, err := encode(next)
	if err != nil {
		return err
	}
	query, args, err := s.psql.Update(s.table).
		Set("version", next.Version).
		Set("updated_at", next.UpdatedAt).
		Set("alias_keys", next.AliasKeys()).
		Set("doc", doc).
		Where(sq.Eq{"id": a.ID, "version": a.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, a.ID); err != nil {
			return err
		}
		return artifact.ErrConflict
	}
	a.Version = next.Version
	return nil
}

func (s *Store) FindByAlias(ctx context.Context, a alias.Alias) (*artifact.Artifact, error) {
	q := s.selectDocs().
		Where(sq.Expr("alias_keys @> ?", []string{a.Key()})).
		OrderBy("created_at", "id").
		Limit(1)
	return s.queryOne(ctx, q)
}

func (s *Store) Scan(ctx context.Context, fn func(*artifact.Artifact) error) error {
	query, args, err := s.selectDocs().OrderBy("created_at", "id").ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		a, err := decode(doc, version)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the pool when the store opened it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

var _ artifact.Store = (*Store)(nil)
