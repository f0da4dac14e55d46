// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/vector"
)

// Driver implements vector.Driver using SQLite with the sqlite-vec extension.
type Driver struct {
	db     *sql.DB
	dims   uint
	logger *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	// vec0 virtual tables use integer rowids, so string document IDs map
	// through vec_documents. Filterable metadata fields get their own
	// columns; the full metadata map is kept as JSON.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{db: db, dims: c.Dimensions, logger: logger}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Add stores documents with their embeddings.
// If a document with the same ID already exists, it is updated.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if uint(len(doc.Embedding)) != d.dims {
			return fmt.Errorf("%w: doc %s has %d dimensions, table expects %d",
				vector.ErrDimensions, doc.ID, len(doc.Embedding), d.dims)
		}
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for doc %s: %w", doc.ID, err)
		}
		embBlob := serializeFloat32(doc.Embedding)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_documents WHERE doc_id = ?`, doc.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_documents SET content = ?, user_id = ?, type = ?, category = ?, metadata = ? WHERE rowid = ?`,
				doc.Content, doc.Metadata["user_id"], doc.Metadata["type"], doc.Metadata["category"], string(metaJSON), existingRowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// vec0 does not support UPDATE, replace via DELETE + INSERT
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_documents(doc_id, content, user_id, type, category, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
				doc.ID, doc.Content, doc.Metadata["user_id"], doc.Metadata["type"], doc.Metadata["category"], string(metaJSON),
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec", zap.Int("count", len(docs)))
	return nil
}

// Query finds the topK most similar documents matching the filter.
// The filter is pushed into the KNN scan itself via a rowid IN constraint,
// so topK counts only matching rows.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	queryBlob := serializeFloat32(embedding)

	// vec0 selects the k nearest rows before any join, so filtering the
	// joined rows afterwards can drop every match for a scoped query.
	where, args := filterClause(filter, "vec_documents")
	scope := ""
	if where != "" {
		scope = fmt.Sprintf("AND ve.rowid IN (SELECT rowid FROM vec_documents WHERE 1=1 %s)", where)
	}

	query := fmt.Sprintf(`
		SELECT d.doc_id, d.content, d.metadata, ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_documents d ON d.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
			%s
		ORDER BY ve.distance
	`, scope)

	queryArgs := append([]any{queryBlob, topK}, args...)
	rows, err := d.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var docID, content, metaJSON string
		var distance float64
		if err := rows.Scan(&docID, &content, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		meta, err := unmarshalMeta(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", docID, err)
		}

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:       docID,
				Content:  content,
				Metadata: meta,
			},
			Distance: float32(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", zap.Int("results", len(results)))
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT d.doc_id, d.content, d.metadata, d.rowid
		FROM vec_documents d
		WHERE d.doc_id IN (%s)
	`, strings.Join(placeholders, ","))

	return d.collectDocs(ctx, query, args...)
}

// List returns all documents matching the filter.
func (d *Driver) List(ctx context.Context, filter vector.Filter) ([]vector.Document, error) {
	where, args := filterClause(filter, "d")
	query := fmt.Sprintf(`
		SELECT d.doc_id, d.content, d.metadata, d.rowid
		FROM vec_documents d
		WHERE 1=1 %s
		ORDER BY d.rowid
	`, where)

	return d.collectDocs(ctx, query, args...)
}

// collectDocs runs a (doc_id, content, metadata, rowid) query and loads each
// document's embedding afterwards. Results are collected first so the rows
// cursor is closed before issuing further queries (SQLite uses a single
// connection).
func (d *Driver) collectDocs(ctx context.Context, query string, args ...any) ([]vector.Document, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	type docRow struct {
		docID    string
		content  string
		metaJSON string
		rowID    int64
	}
	var docRows []docRow

	for rows.Next() {
		var dr docRow
		if err := rows.Scan(&dr.docID, &dr.content, &dr.metaJSON, &dr.rowID); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docRows = append(docRows, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	rows.Close()

	docs := make([]vector.Document, 0, len(docRows))
	for _, dr := range docRows {
		meta, err := unmarshalMeta(dr.metaJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", dr.docID, err)
		}

		doc := vector.Document{
			ID:       dr.docID,
			Content:  dr.content,
			Metadata: meta,
		}

		var embBlob []byte
		err = d.db.QueryRowContext(ctx,
			`SELECT embedding FROM vec_embeddings WHERE rowid = ?`, dr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			doc.Embedding, _ = deserializeFloat32(embBlob)
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	_, err := d.deleteRows(ctx,
		fmt.Sprintf(`SELECT rowid FROM vec_documents WHERE doc_id IN (%s)`, inClause),
		args...,
	)
	return err
}

// DeleteWhere removes all documents matching the filter.
func (d *Driver) DeleteWhere(ctx context.Context, filter vector.Filter) (int, error) {
	where, args := filterClause(filter, "vec_documents")
	return d.deleteRows(ctx,
		fmt.Sprintf(`SELECT rowid FROM vec_documents WHERE 1=1 %s`, where),
		args...,
	)
}

// deleteRows removes the documents selected by rowQuery from both tables.
func (d *Driver) deleteRows(ctx context.Context, rowQuery string, args ...any) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, rowQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return 0, fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_documents WHERE rowid = ?`, rowID,
		); err != nil {
			return 0, fmt.Errorf("deleting document rowid %d: %w", rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec", zap.Int("count", len(rowIDs)))
	return len(rowIDs), nil
}

// Count returns the number of documents matching the filter.
func (d *Driver) Count(ctx context.Context, filter vector.Filter) (int, error) {
	where, args := filterClause(filter, "vec_documents")
	query := fmt.Sprintf(`SELECT COUNT(*) FROM vec_documents WHERE 1=1 %s`, where)

	var n int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

// filterClause renders the filter as additional AND conditions on the
// aliased vec_documents table.
func filterClause(filter vector.Filter, alias string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, fmt.Sprintf("AND %s.user_id = ?", alias))
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		clauses = append(clauses, fmt.Sprintf("AND %s.type = ?", alias))
		args = append(args, filter.Type)
	}
	if filter.Category != "" {
		clauses = append(clauses, fmt.Sprintf("AND %s.category = ?", alias))
		args = append(args, filter.Category)
	}
	return strings.Join(clauses, " "), args
}

func unmarshalMeta(metaJSON string) (map[string]string, error) {
	meta := make(map[string]string)
	if metaJSON == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

var _ vector.Driver = (*Driver)(nil)
