package driver

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores one JSON document per row. Row order (seq) is
// ingestion order.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "open sqlite %s", path)
	}
	// one writer keeps read-modify-write updates serialised
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db}
	if err := r.BuildIndices(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id  TEXT NOT NULL UNIQUE,
	doc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_classification ON records(json_extract(doc, '$.classification'));
`

func (r *SQLiteRepository) BuildIndices(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "create sqlite schema")
	}
	return nil
}

func (r *SQLiteRepository) FetchAll(ctx context.Context, f Filter) ([]Document, error) {
	var (
		where []string
		args  []any
	)
	if f.HasExtractedFields {
		where = append(where, `json_extract(doc, '$.extractedKeyfields') IS NOT NULL`)
	}
	if f.ExcludeDuplicates {
		where = append(where, `coalesce(json_extract(doc, '$.isDuplicate'), 0) != 1`)
	}
	if f.Classification != "" {
		where = append(where, `json_extract(doc, '$.classification') = ?`)
		args = append(args, f.Classification)
	}

	q := `SELECT doc FROM records`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "fetch records")
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "scan record")
		}
		var d Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, eris.Wrap(err, "decode record")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "iterate records")
}

func (r *SQLiteRepository) UpdatePartial(ctx context.Context, id string, set map[string]any) error {
	return r.modify(ctx, id, false, func(d Document) { merge(d, set) })
}

func (r *SQLiteRepository) Upsert(ctx context.Context, d Document) error {
	id := d.ID()
	if id == "" {
		return eris.New("upsert: document has no _id")
	}
	return r.modify(ctx, id, true, func(existing Document) { merge(existing, d) })
}

// modify loads the document, applies fn and writes it back in one
// transaction.
func (r *SQLiteRepository) modify(ctx context.Context, id string, create bool, fn func(Document)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer tx.Rollback()

	d := Document{KeyID: id}
	var raw string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM records WHERE id = ?`, id).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		if !create {
			return eris.Wrapf(ErrNotFound, "update %s", id)
		}
	case err != nil:
		return eris.Wrapf(err, "load %s", id)
	default:
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return eris.Wrapf(err, "decode %s", id)
		}
	}

	fn(d)
	data, err := json.Marshal(d)
	if err != nil {
		return eris.Wrapf(err, "encode %s", id)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, doc) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		id, string(data),
	)
	if err != nil {
		return eris.Wrapf(err, "store %s", id)
	}
	return eris.Wrap(tx.Commit(), "commit")
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}
