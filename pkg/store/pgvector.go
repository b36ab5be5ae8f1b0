package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/askpdf/internal/models"
)

type PgVectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PgVectorStore is the optional persistent backend, keeping chunks in a
// Postgres table with a pgvector embedding column. It implements the
// same contract as MemoryStore; Postgres transactions provide the
// writer atomicity the memory backend gets from its mutex.
type PgVectorStore struct {
	config PgVectorStoreConfig
	pool   *pgxpool.Pool
}

// filterColumns maps metadata filter keys to table columns. Filters on
// anything else are rejected rather than silently ignored.
var filterColumns = map[string]string{
	models.MetaDocumentID: "document_id",
	models.MetaPageNumber: "page_number",
	models.MetaChunkIndex: "chunk_index",
	models.MetaFilename:   "filename",
}

func NewPgVectorStore(ctx context.Context, config PgVectorStoreConfig) (*PgVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // text-embedding-3-small
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, models.WrapError(models.KindConfiguration, err, "invalid database connection string")
	}

	vs := &PgVectorStore{config: config, pool: pool}
	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return vs, nil
}

func (vs *PgVectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return models.WrapError(models.KindProvider, err, "failed to create vector extension")
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			page_number INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_length INTEGER NOT NULL,
			filename TEXT,
			title TEXT,
			author TEXT,
			num_pages INTEGER,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return models.WrapError(models.KindProvider, err, "failed to create table")
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_document_id_idx
		ON %s (document_id)`,
		vs.config.TableName, vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return models.WrapError(models.KindProvider, err, "failed to create index")
	}

	return nil
}

// Add inserts all records in one transaction, so a failure at any row
// leaves no partial document behind.
func (vs *PgVectorStore) Add(ctx context.Context, chunks []models.Chunk, embeddings [][]float32, documentID string, extra map[string]any) error {
	if len(chunks) != len(embeddings) {
		return models.NewError(models.KindDimensionMismatch,
			"%d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	for i, emb := range embeddings {
		if len(emb) != vs.config.VectorDim {
			return models.NewError(models.KindDimensionMismatch,
				"embedding %d has dimension %d, store expects %d", i, len(emb), vs.config.VectorDim)
		}
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return models.WrapError(models.KindProvider, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, content, page_number, chunk_index, chunk_length,
			filename, title, author, num_pages, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		vs.config.TableName)

	filename, _ := extra[models.MetaFilename].(string)
	title, _ := extra[models.MetaTitle].(string)
	author, _ := extra[models.MetaAuthor].(string)
	numPages, _ := extra[models.MetaNumPages].(int)

	for i, chunk := range chunks {
		_, err := tx.Exec(ctx, stmt,
			chunkID(documentID, chunk.ChunkIndex),
			documentID,
			sanitizeUTF8(chunk.Text),
			chunk.PageNumber,
			chunk.ChunkIndex,
			chunk.Length,
			sanitizeUTF8(filename),
			sanitizeUTF8(title),
			sanitizeUTF8(author),
			numPages,
			pgvector.NewVector(embeddings[i]),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return models.WrapError(models.KindDuplicateID, err,
					"chunk id %q already stored", chunkID(documentID, chunk.ChunkIndex))
			}
			return models.WrapError(models.KindProvider, err, "failed to insert chunk")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.WrapError(models.KindProvider, err, "failed to commit transaction")
	}
	return nil
}

func (vs *PgVectorStore) Query(ctx context.Context, embedding []float32, n int, filter map[string]any) ([]models.SearchResult, error) {
	query := fmt.Sprintf(`
		SELECT id, content, document_id, page_number, chunk_index, chunk_length,
			filename, title, author, num_pages, embedding <=> $1 AS distance
		FROM %s`, vs.config.TableName)

	args := []any{pgvector.NewVector(embedding)}
	for k, v := range filter {
		col, ok := filterColumns[k]
		if !ok {
			return nil, models.NewError(models.KindConfiguration, "unsupported filter key %q", k)
		}
		args = append(args, v)
		if len(args) == 2 {
			query += fmt.Sprintf(" WHERE %s = $%d", col, len(args))
		} else {
			query += fmt.Sprintf(" AND %s = $%d", col, len(args))
		}
	}
	// NaN distances from zero vectors sort last under Postgres ordering.
	query += fmt.Sprintf(" ORDER BY distance, chunk_index LIMIT %d", n)

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, models.WrapError(models.KindProvider, err, "failed to query chunks")
	}
	defer rows.Close()

	results := []models.SearchResult{}
	for rows.Next() {
		var r models.SearchResult
		var docID, filename, title, author string
		var pageNumber, chunkIndex, chunkLen, numPages int
		err := rows.Scan(&r.ID, &r.Text, &docID, &pageNumber, &chunkIndex, &chunkLen,
			&filename, &title, &author, &numPages, &r.Distance)
		if err != nil {
			return nil, models.WrapError(models.KindProvider, err, "failed to scan row")
		}
		r.Metadata = map[string]any{
			models.MetaDocumentID:  docID,
			models.MetaPageNumber:  pageNumber,
			models.MetaChunkIndex:  chunkIndex,
			models.MetaChunkLength: chunkLen,
			models.MetaFilename:    filename,
			models.MetaTitle:       title,
			models.MetaAuthor:      author,
			models.MetaNumPages:    numPages,
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapError(models.KindProvider, err, "failed to read rows")
	}
	return results, nil
}

func (vs *PgVectorStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := vs.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", vs.config.TableName), documentID)
	if err != nil {
		return 0, models.WrapError(models.KindProvider, err, "failed to delete document")
	}
	return int(tag.RowsAffected()), nil
}

func (vs *PgVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := vs.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)).Scan(&count)
	if err != nil {
		return 0, models.WrapError(models.KindProvider, err, "failed to count chunks")
	}
	return count, nil
}

func (vs *PgVectorStore) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := vs.pool.Query(ctx,
		fmt.Sprintf("SELECT DISTINCT document_id FROM %s ORDER BY document_id", vs.config.TableName))
	if err != nil {
		return nil, models.WrapError(models.KindProvider, err, "failed to list documents")
	}
	defer rows.Close()

	docIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, models.WrapError(models.KindProvider, err, "failed to scan row")
		}
		docIDs = append(docIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapError(models.KindProvider, err, "failed to read rows")
	}
	return docIDs, nil
}

func (vs *PgVectorStore) DocumentInfo(ctx context.Context, documentID string) (*models.DocumentInfo, error) {
	info := models.DocumentInfo{DocumentID: documentID}
	err := vs.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT coalesce(filename, ''), coalesce(title, ''), coalesce(author, ''),
			coalesce(num_pages, 0), count(*)
		FROM %s WHERE document_id = $1
		GROUP BY filename, title, author, num_pages
		LIMIT 1`, vs.config.TableName), documentID).
		Scan(&info.Filename, &info.Title, &info.Author, &info.NumPages, &info.NumChunks)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewError(models.KindNotFound, "document %q not found", documentID)
	}
	if err != nil {
		return nil, models.WrapError(models.KindProvider, err, "failed to load document info")
	}
	return &info, nil
}

func (vs *PgVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
