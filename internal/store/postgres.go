package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"thea/api/internal/docpath"
)

// Postgres implements Store on a single JSONB-backed table. Every logical
// collection shares the documents table, discriminated by table_name, which
// mirrors the single-table layout of the DynamoDB driver.
//
// Merge-updates run as one UPDATE statement chaining jsonb_set_deep per path,
// so concurrent writers touching different fields of the same document both
// land — the same per-field last-write-wins the DynamoDB driver gives.
type Postgres struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	store := &Postgres{db: db}
	if err := store.bootstrap(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func NewPostgresWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Close() error { return p.db.Close() }

// bootstrap installs the documents table and the deep jsonb_set helper that
// creates intermediate objects the way a document store does.
func (p *Postgres) bootstrap(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS documents (
			table_name TEXT NOT NULL,
			doc_key    TEXT NOT NULL,
			doc        JSONB NOT NULL,
			PRIMARY KEY (table_name, doc_key)
		);
		CREATE INDEX IF NOT EXISTS documents_doc_gin ON documents USING gin (doc);

		CREATE OR REPLACE FUNCTION jsonb_set_deep(target JSONB, path TEXT[], val JSONB)
		RETURNS JSONB AS $$
		DECLARE
			idx INT;
			prefix TEXT[];
			node JSONB;
		BEGIN
			FOR idx IN 1 .. COALESCE(array_length(path, 1), 0) - 1 LOOP
				prefix := path[1:idx];
				node := target #> prefix;
				IF node IS NULL OR jsonb_typeof(node) <> 'object' THEN
					target := jsonb_set(target, prefix, '{}'::jsonb, true);
				END IF;
			END LOOP;
			RETURN jsonb_set(target, path, val, true);
		END;
		$$ LANGUAGE plpgsql IMMUTABLE;
	`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("bootstrap documents schema: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, table string, key Key, paths []string) (Document, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE table_name = $1 AND doc_key = $2`,
		table, key.canonical(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get %s %v: %w", table, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", table, err)
	}
	if len(paths) == 0 {
		return doc, nil
	}
	return docpath.Project(doc, paths), nil
}

func (p *Postgres) Put(ctx context.Context, table string, key Key, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", table, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO documents (table_name, doc_key, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (table_name, doc_key) DO UPDATE SET doc = EXCLUDED.doc
	`, table, key.canonical(), raw)
	if err != nil {
		return fmt.Errorf("put %s: %w", table, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, table string, key Key, set map[string]any, remove []string) error {
	if len(set) == 0 && len(remove) == 0 {
		return fmt.Errorf("update %s %v: empty expression: %w", table, key, ErrValidation)
	}

	statement, args, err := buildMergeUpdate(set, remove)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, statement, append([]any{table, key.canonical()}, args...)...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if affected > 0 {
		return nil
	}

	// Missing document: materialize one from the key attributes and the set
	// paths, matching the silent-create contract.
	doc := Document{}
	for name, value := range key {
		doc[name] = value
	}
	for path, value := range set {
		docpath.Put(doc, path, value)
	}
	return p.Put(ctx, table, key, doc)
}

// buildMergeUpdate renders one UPDATE whose doc expression nests a
// jsonb_set_deep call per set path and a #- per removal. Placeholders $1/$2
// are reserved for table_name and doc_key.
func buildMergeUpdate(set map[string]any, remove []string) (string, []any, error) {
	expr := "doc"
	var args []any
	arg := 3

	for _, path := range sortedPaths(set) {
		raw, err := json.Marshal(set[path])
		if err != nil {
			return "", nil, fmt.Errorf("encode value at %s: %w", path, err)
		}
		expr = fmt.Sprintf("jsonb_set_deep(%s, $%d::text[], $%d::jsonb)", expr, arg, arg+1)
		args = append(args, pgPathArray(path), string(raw))
		arg += 2
	}
	for _, path := range remove {
		expr = fmt.Sprintf("(%s #- $%d::text[])", expr, arg)
		args = append(args, pgPathArray(path))
		arg++
	}

	statement := fmt.Sprintf(
		`UPDATE documents SET doc = %s WHERE table_name = $1 AND doc_key = $2`, expr)
	return statement, args, nil
}

// pgPathArray renders a dotted path as a Postgres text[] literal.
func pgPathArray(path string) string {
	segments := docpath.Split(path)
	quoted := make([]string, len(segments))
	for i, segment := range segments {
		quoted[i] = `"` + strings.ReplaceAll(segment, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

func (p *Postgres) Query(ctx context.Context, table, index, value string, paths []string) ([]Document, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE table_name = $1 AND doc ->> $2 = $3`,
		table, index, value,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", table, index, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", table, err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", table, err)
		}
		if len(paths) > 0 {
			doc = docpath.Project(doc, paths)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s documents: %w", table, err)
	}
	return docs, nil
}
