package translations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/core/sqlite"
	"github.com/EvanderIV/theology/internal/logging"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS info (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS verses (
	book    TEXT    NOT NULL,
	chapter INTEGER NOT NULL,
	verse   INTEGER NOT NULL,
	text    TEXT    NOT NULL,
	PRIMARY KEY (book, chapter, verse)
);`

// LoadSQLite reads a dataset from the verses table. An optional info table
// row named "name" supplies the display name.
func LoadSQLite(ctx context.Context, path, id string) (*scripture.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, cerrors.NewIO("open", path, err)
	}
	fp, err := FingerprintFile(path)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, cerrors.NewIO("open", path, err)
	}
	defer db.Close()

	ok, err := sqlite.TableExists(ctx, db, "verses")
	if err != nil {
		return nil, &cerrors.ParseError{Format: "SQLite", Path: path, Message: "not a database", Err: err}
	}
	if !ok {
		return nil, cerrors.NewParse("SQLite", path, "missing verses table")
	}

	b := scripture.NewBuilder(id, id)
	b.SetFingerprint(fp)

	if name := sqliteName(ctx, db, path); name != "" {
		b.SetName(name)
	}

	rows, err := db.QueryContext(ctx, `SELECT book, chapter, verse, text FROM verses`)
	if err != nil {
		return nil, cerrors.NewIO("query", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			book      string
			ch, verse int
			text      string
		)
		if err := rows.Scan(&book, &ch, &verse, &text); err != nil {
			return nil, &cerrors.ParseError{Format: "SQLite", Path: path, Message: "bad verse row", Err: err}
		}
		if ch > scripture.MaxNumber || verse > scripture.MaxNumber {
			return nil, cerrors.NewParse("SQLite", path, fmt.Sprintf("%s %d:%d: number out of range", book, ch, verse))
		}
		b.Add(book, ch, verse, text)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.NewIO("query", path, err)
	}

	if b.Len() == 0 {
		return nil, cerrors.NewParse("SQLite", path, "no verses")
	}
	return b.Build(), nil
}

// sqliteName reads the optional info table's display name. Failures leave
// the dataset named by its id.
func sqliteName(ctx context.Context, db *sql.DB, path string) string {
	ok, err := sqlite.TableExists(ctx, db, "info")
	if err != nil {
		logging.Debug("sqlite info table check failed", "path", path, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	var name string
	err = db.QueryRowContext(ctx, `SELECT value FROM info WHERE name = 'name'`).Scan(&name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logging.Debug("sqlite info name query failed", "path", path, "error", err)
	}
	return name
}

// WriteSQLite stores ds at path using the schema LoadSQLite reads. An
// existing file is replaced.
func WriteSQLite(ctx context.Context, ds *scripture.Dataset, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return cerrors.NewIO("remove", path, err)
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return cerrors.NewIO("create", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return cerrors.NewIO("create schema", path, err)
	}

	return sqlite.WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO info (name, value) VALUES ('name', ?), ('id', ?)`,
			ds.Name, ds.ID); err != nil {
			return cerrors.NewIO("write", path, err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO verses (book, chapter, verse, text) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return cerrors.NewIO("prepare", path, err)
		}
		defer stmt.Close()

		return ds.Each(func(book string, chapter, verse int, text string) error {
			if _, err := stmt.ExecContext(ctx, book, chapter, verse, text); err != nil {
				return cerrors.NewIO("write", path, err)
			}
			return nil
		})
	})
}
