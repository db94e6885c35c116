package translations

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeebo/blake3"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
)

// PostgresSchema is the catalog layout served by a PostgresStore.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS translations (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS verses (
	translation TEXT    NOT NULL REFERENCES translations(id) ON DELETE CASCADE,
	book        TEXT    NOT NULL,
	chapter     INTEGER NOT NULL,
	verse       INTEGER NOT NULL,
	text        TEXT    NOT NULL,
	PRIMARY KEY (translation, book, chapter, verse)
)`

// PostgresStore serves translations kept in a shared PostgreSQL database.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore connects and pings the database.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

// Initialize creates the catalog tables if they are missing.
func (s *PostgresStore) Initialize(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to create translation tables: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.Pool.Close()
}

// Catalog lists the translations the database holds, keyed by id.
func (s *PostgresStore) Catalog(ctx context.Context) (map[string]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name FROM translations`)
	if err != nil {
		return nil, cerrors.NewIO("query", "postgres:translations", err)
	}
	out := make(map[string]string)
	var id, name string
	_, err = pgx.ForEachRow(rows, []any{&id, &name}, func() error {
		out[id] = name
		return nil
	})
	if err != nil {
		return nil, cerrors.NewIO("query", "postgres:translations", err)
	}
	return out, nil
}

// Load reads one translation. The fingerprint is a BLAKE3 digest of the
// rows in key order, so it only changes when the text does.
func (s *PostgresStore) Load(ctx context.Context, id string) (*scripture.Dataset, error) {
	where := "postgres:" + id

	var name string
	err := s.Pool.QueryRow(ctx, `SELECT name FROM translations WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cerrors.NewNotFound("translation", id)
	}
	if err != nil {
		return nil, cerrors.NewIO("query", where, err)
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT book, chapter, verse, text FROM verses
		 WHERE translation = $1 ORDER BY book, chapter, verse`, id)
	if err != nil {
		return nil, cerrors.NewIO("query", where, err)
	}

	b := scripture.NewBuilder(id, name)
	h := blake3.New()
	var (
		book      string
		ch, verse int32
		text      string
	)
	_, err = pgx.ForEachRow(rows, []any{&book, &ch, &verse, &text}, func() error {
		b.Add(book, int(ch), int(verse), text)
		_, _ = h.Write([]byte(book + "\x00" + strconv.Itoa(int(ch)) + "\x00" + strconv.Itoa(int(verse)) + "\x00" + text + "\n"))
		return nil
	})
	if err != nil {
		return nil, cerrors.NewIO("query", where, err)
	}

	if b.Len() == 0 {
		return nil, cerrors.NewParse("Postgres", where, "no verses")
	}
	b.SetFingerprint(sumHex(h))
	return b.Build(), nil
}

// Store replaces one translation's rows with ds.
func (s *PostgresStore) Store(ctx context.Context, ds *scripture.Dataset) error {
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO translations (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, ds.ID, ds.Name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM verses WHERE translation = $1`, ds.ID); err != nil {
			return err
		}

		var rows [][]any
		err := ds.Each(func(book string, chapter, verse int, text string) error {
			if chapter > scripture.MaxNumber || verse > scripture.MaxNumber {
				return fmt.Errorf("%s %s %d:%d: number out of range", ds.ID, book, chapter, verse)
			}
			rows = append(rows, []any{ds.ID, book, int32(chapter), int32(verse), text})
			return nil
		})
		if err != nil {
			return err
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"verses"},
			[]string{"translation", "book", "chapter", "verse", "text"},
			pgx.CopyFromRows(rows))
		return err
	})
}
