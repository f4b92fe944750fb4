package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const documentsTable = "documents"

var naturalKeyColumns = []string{"tier", "collection", "natural_key"}

// PostgresProvider hands out handles bound to a single pooled connection.
type PostgresProvider struct {
	db     database.DB
	logger ectologger.Logger
}

// NewPostgresProvider creates a provider over the documents table
func NewPostgresProvider(db database.DB, logger ectologger.Logger) *PostgresProvider {
	return &PostgresProvider{
		db:     db,
		logger: logger,
	}
}

// Acquire returns a handle bound to one pooled connection
func (p *PostgresProvider) Acquire(ctx context.Context) (Store, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresProvider.Acquire")
	defer span.End()

	conn, err := p.db.Connx(ctx)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to acquire database connection")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to acquire database connection: %v", err)
	}
	return &postgresStore{conn: conn, logger: p.logger}, nil
}

type postgresStore struct {
	conn   *sqlx.Conn
	logger ectologger.Logger
	closed bool
}

func (s *postgresStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *postgresStore) fail(ctx context.Context, err error, ns Namespace, msg string) error {
	s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"namespace": ns.String()}).Error(msg)
	return httperror.NewHTTPErrorf(http.StatusInternalServerError, "%s: %v", msg, err)
}

func encode(doc Document) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Join(ErrInvalidDocument, err)
	}
	return string(b), nil
}

func (s *postgresStore) UpsertByQuery(ctx context.Context, ns Namespace, q Query, doc Document) error {
	ctx, span := tracing.StartSpan(ctx, "docstore.postgresStore.UpsertByQuery")
	defer span.End()

	if s.closed {
		return ErrClosed
	}
	return s.upsert(ctx, s.conn, ns, q, doc)
}

func (s *postgresStore) upsert(ctx context.Context, q database.Querier, ns Namespace, query Query, doc Document) error {
	key, err := NaturalKey(query)
	if err != nil {
		return err
	}
	stored, err := withKey(query, doc)
	if err != nil {
		return err
	}
	body, err := encode(stored)
	if err != nil {
		return err
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(documentsTable)
	ib.Cols("id", "tier", "collection", "natural_key", "doc")
	ib.Values(uuid.NewString(), string(ns.Tier), ns.Collection, key, body)
	sqlStr, args := ib.Build()
	sqlStr = database.OnConflictUpdate(sqlStr, naturalKeyColumns, "doc", "updated_at")

	if _, err := q.ExecContext(ctx, sqlStr, args...); err != nil {
		return s.fail(ctx, err, ns, "failed to upsert document")
	}
	return nil
}

func (s *postgresStore) Find(ctx context.Context, ns Namespace, q Query) ([]Document, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.postgresStore.Find")
	defer span.End()

	if s.closed {
		return nil, ErrClosed
	}
	filter, err := encode(Document(q))
	if err != nil {
		return nil, err
	}

	sb := database.NewSelectBuilder()
	sb.Select("doc")
	sb.From(documentsTable)
	sb.Where(
		sb.Equal("tier", string(ns.Tier)),
		sb.Equal("collection", ns.Collection),
		database.JSONContains(sb, "doc", filter),
	)
	sb.OrderBy("created_at", "id")

	sqlStr, args := sb.Build()
	var rows []database.JSONB[Document]
	if err := s.conn.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, s.fail(ctx, err, ns, "failed to find documents")
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.Data)
	}
	return docs, nil
}

func (s *postgresStore) FindOne(ctx context.Context, ns Namespace, q Query) (Document, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.postgresStore.FindOne")
	defer span.End()

	if s.closed {
		return nil, false, ErrClosed
	}
	filter, err := encode(Document(q))
	if err != nil {
		return nil, false, err
	}

	sb := database.NewSelectBuilder()
	sb.Select("doc")
	sb.From(documentsTable)
	sb.Where(
		sb.Equal("tier", string(ns.Tier)),
		sb.Equal("collection", ns.Collection),
		database.JSONContains(sb, "doc", filter),
	)
	sb.OrderBy("created_at", "id")
	sb.Limit(1)

	sqlStr, args := sb.Build()
	var row database.JSONB[Document]
	if err := s.conn.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, s.fail(ctx, err, ns, "failed to find document")
	}
	return row.Data, true, nil
}

func (s *postgresStore) InsertIfAbsent(ctx context.Context, ns Namespace, q Query, doc Document) (Document, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.postgresStore.InsertIfAbsent")
	defer span.End()

	if s.closed {
		return nil, false, ErrClosed
	}
	key, err := NaturalKey(q)
	if err != nil {
		return nil, false, err
	}
	stored, err := withKey(q, doc)
	if err != nil {
		return nil, false, err
	}
	body, err := encode(stored)
	if err != nil {
		return nil, false, err
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(documentsTable)
	ib.Cols("id", "tier", "collection", "natural_key", "doc")
	ib.Values(uuid.NewString(), string(ns.Tier), ns.Collection, key, body)
	sqlStr, args := ib.Build()
	sqlStr = database.OnConflictDoNothing(sqlStr, naturalKeyColumns)

	res, err := s.conn.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, false, s.fail(ctx, err, ns, "failed to insert document")
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return stored, true, nil
	}

	// lost the race: another writer owns this natural key
	sb := database.NewSelectBuilder()
	sb.Select("doc")
	sb.From(documentsTable)
	sb.Where(
		sb.Equal("tier", string(ns.Tier)),
		sb.Equal("collection", ns.Collection),
		sb.Equal("natural_key", key),
	)
	sqlStr, args = sb.Build()
	var row database.JSONB[Document]
	if err := s.conn.GetContext(ctx, &row, sqlStr, args...); err != nil {
		return nil, false, s.fail(ctx, err, ns, "failed to read existing document")
	}
	return row.Data, false, nil
}

func (s *postgresStore) Replace(ctx context.Context, ns Namespace, q Query, doc Document) error {
	ctx, span := tracing.StartSpan(ctx, "docstore.postgresStore.Replace")
	defer span.End()

	if s.closed {
		return ErrClosed
	}

	ctx, tx, err := database.GetTx(ctx, s.logger, s.conn, nil)
	if err != nil {
		return s.fail(ctx, err, ns, "failed to begin replace")
	}
	defer tx.Rollback(ctx)

	if _, err := s.deleteMatching(ctx, tx, ns, q); err != nil {
		return err
	}
	if err := s.upsert(ctx, tx, ns, q, doc); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return s.fail(ctx, err, ns, "failed to commit replace")
	}
	return nil
}

func (s *postgresStore) DeleteByQuery(ctx context.Context, ns Namespace, q Query) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.postgresStore.DeleteByQuery")
	defer span.End()

	if s.closed {
		return 0, ErrClosed
	}
	return s.deleteMatching(ctx, s.conn, ns, q)
}

func (s *postgresStore) deleteMatching(ctx context.Context, q database.Querier, ns Namespace, query Query) (int64, error) {
	filter, err := encode(Document(query))
	if err != nil {
		return 0, err
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(documentsTable)
	db.Where(
		db.Equal("tier", string(ns.Tier)),
		db.Equal("collection", ns.Collection),
		database.JSONContains(db, "doc", filter),
	)
	sqlStr, args := db.Build()

	res, err := q.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, s.fail(ctx, err, ns, "failed to delete documents")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *postgresStore) DeleteAll(ctx context.Context, ns Namespace) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.postgresStore.DeleteAll")
	defer span.End()

	if s.closed {
		return 0, ErrClosed
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(documentsTable)
	db.Where(
		db.Equal("tier", string(ns.Tier)),
		db.Equal("collection", ns.Collection),
	)
	sqlStr, args := db.Build()

	res, err := s.conn.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, s.fail(ctx, err, ns, "failed to delete namespace")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
