// Package catalog answers queries about the files of a BIDS dataset.
//
// Open scans the dataset tree once, parses every imaging filename into
// its entity tokens, and loads the results into an in-memory SQLite
// index. All queries after Open are pure reads against that index;
// ordering within one session's results is lexicographic by path and is
// part of the package's contract (the combine pipeline preserves it and
// never re-sorts).
package catalog

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meganc/bidscombine/internal/bids"
)

// DataExtension is the extension of primary imaging files indexed by
// the catalog. Sidecars are derived from it, never indexed.
const DataExtension = ".nii.gz"

// SourceFile is one imaging file known to the catalog. Immutable; the
// pipeline only reads and copies it.
type SourceFile struct {
	// Path is the absolute path of the data file.
	Path string
	// Filename is the base name of the data file.
	Filename string
	// Name is the parsed filename.
	Name bids.Name
}

// Query selects files. Empty fields match everything.
type Query struct {
	Subject   string
	Session   string
	Datatype  string // anat, func, fmap
	Suffix    string // T1w, T2w, bold, ...
	Task      string
	Extension string
}

// Catalog is a scanned, indexed BIDS dataset.
type Catalog struct {
	root string
	db   *sql.DB
}

const schemaSQL = `
CREATE TABLE files (
	path      TEXT PRIMARY KEY,
	filename  TEXT NOT NULL,
	subject   TEXT NOT NULL,
	session   TEXT NOT NULL DEFAULT '',
	datatype  TEXT NOT NULL,
	suffix    TEXT NOT NULL DEFAULT '',
	task      TEXT NOT NULL DEFAULT '',
	dir       TEXT NOT NULL DEFAULT '',
	extension TEXT NOT NULL
);

CREATE INDEX idx_files_subject_session ON files(subject, session);
`

// Open validates the dataset description, scans root for imaging files,
// and builds the index. The returned Catalog must be closed.
func Open(root string) (*Catalog, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("catalog: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog: root is not a directory: %s", abs)
	}

	if err := validateDescription(abs); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("catalog: open index: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}

	c := &Catalog{root: abs, db: db}
	if err := c.scan(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the index.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Root returns the absolute dataset root.
func (c *Catalog) Root() string { return c.root }

// scan walks the dataset tree and indexes every data file that lives at
// sub-<label>/ses-<label>/<datatype>/. WalkDir visits entries in lexical
// order, so insertion order matches path order.
func (c *Catalog) scan() error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.Prepare(`
		INSERT INTO files (path, filename, subject, session, datatype, suffix, task, dir, extension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("catalog: prepare insert: %w", err)
	}
	defer stmt.Close()

	err = filepath.WalkDir(c.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			// Descend only into the dataset's own hierarchy.
			if path == c.root || strings.HasPrefix(d.Name(), "sub-") ||
				strings.HasPrefix(d.Name(), "ses-") || isDatatype(d.Name()) {
				return nil
			}
			return filepath.SkipDir
		}
		if !strings.HasSuffix(d.Name(), DataExtension) {
			return nil
		}

		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(rel, string(filepath.Separator))
		// Expect sub-<label>/ses-<label>/<datatype>/<file>.
		if len(parts) != 4 || !isDatatype(parts[2]) {
			return nil
		}

		name, err := bids.ParseName(d.Name())
		if err != nil {
			// Files the grammar cannot describe are outside the
			// catalog's contract; skip them.
			return nil
		}

		ents := name.Entities()
		_, execErr := stmt.Exec(
			path, d.Name(),
			ents[bids.KeySubject], ents[bids.KeySession],
			parts[2], name.Suffix(),
			ents[bids.KeyTask], ents[bids.KeyDirection],
			name.Extension(),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("catalog: scan: %w", err)
	}
	return tx.Commit()
}

func isDatatype(name string) bool {
	switch name {
	case "anat", "func", "fmap":
		return true
	}
	return false
}

// Subjects returns the labels of all subjects in the dataset, sorted.
func (c *Catalog) Subjects() ([]string, error) {
	return c.distinct(`SELECT DISTINCT subject FROM files ORDER BY subject`)
}

// Sessions returns the session labels of one subject, sorted.
func (c *Catalog) Sessions(subject string) ([]string, error) {
	return c.distinct(`SELECT DISTINCT session FROM files WHERE subject = ? AND session != '' ORDER BY session`, subject)
}

// Tasks returns the distinct task names present for the subject across
// the given sessions, sorted.
func (c *Catalog) Tasks(subject string, sessions []string) ([]string, error) {
	if len(sessions) == 0 {
		return nil, nil
	}
	q := `SELECT DISTINCT task FROM files WHERE subject = ? AND task != '' AND session IN (?` +
		strings.Repeat(",?", len(sessions)-1) + `) ORDER BY task`
	args := make([]any, 0, len(sessions)+1)
	args = append(args, subject)
	for _, s := range sessions {
		args = append(args, s)
	}
	return c.distinct(q, args...)
}

func (c *Catalog) distinct(query string, args ...any) ([]string, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("catalog: scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate rows: %w", err)
	}
	return out, nil
}

// Files returns the files matching q, ordered lexicographically by path.
func (c *Catalog) Files(q Query) ([]SourceFile, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	add("subject", q.Subject)
	add("session", q.Session)
	add("datatype", q.Datatype)
	add("suffix", q.Suffix)
	add("task", q.Task)
	add("extension", q.Extension)

	query := `SELECT path, filename FROM files`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY path"

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query files: %w", err)
	}
	defer rows.Close()

	var out []SourceFile
	for rows.Next() {
		var f SourceFile
		if err := rows.Scan(&f.Path, &f.Filename); err != nil {
			return nil, fmt.Errorf("catalog: scan row: %w", err)
		}
		name, err := bids.ParseName(f.Filename)
		if err != nil {
			return nil, fmt.Errorf("catalog: reparse %s: %w", f.Filename, err)
		}
		f.Name = name
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate rows: %w", err)
	}
	return out, nil
}
