package container

import (
	"database/sql"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-uuid"
	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

// SQLite stores pages as blobs in a SQLite database. Several containers can
// share one database file by using distinct namespaces.
type SQLite[T any] struct {
	db     *sql.DB
	ns     string
	codec  Codec[T]
	next   ID
	mu     sync.Mutex
	closed bool
}

// OpenSQLite opens (or creates) the page tables in the database at path.
// An empty namespace is replaced by a random one.
func OpenSQLite[T any](path, namespace string, codec Codec[T]) (*SQLite[T], error) {
	if namespace == "" {
		ns, err := uuid.GenerateUUID()
		if err != nil {
			return nil, errors.Wrap(err, "generate namespace")
		}
		namespace = ns
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	query := `
	CREATE TABLE IF NOT EXISTS pages (
		ns   TEXT NOT NULL,
		id   INTEGER NOT NULL,
		data BLOB,
		PRIMARY KEY (ns, id)
	);
	CREATE TABLE IF NOT EXISTS meta (
		ns   TEXT NOT NULL,
		name TEXT NOT NULL,
		data BLOB,
		PRIMARY KEY (ns, name)
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init tables")
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		log.Warnf("[Container] Failed to set PRAGMA: %v", err)
	}

	var maxID int64
	if err := db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM pages WHERE ns = ?", namespace).Scan(&maxID); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "scan max id")
	}
	next := maxID + 1
	var stored []byte
	err = db.QueryRow("SELECT data FROM meta WHERE ns = ? AND name = ?", namespace, nextIDMeta).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		db.Close()
		return nil, errors.Wrap(err, "read id counter")
	default:
		n, perr := strconv.ParseInt(string(stored), 10, 64)
		if perr != nil {
			db.Close()
			return nil, errors.Wrapf(perr, "parse id counter %q", stored)
		}
		next = max(next, n)
	}

	log.WithFields(log.Fields{"path": path, "ns": namespace, "next_id": next}).Debug("[Container] sqlite opened")
	return &SQLite[T]{db: db, ns: namespace, codec: codec, next: ID(next)}, nil
}

// nextIDMeta is the meta row holding the id counter, so ids of removed pages
// are not handed out again after a reopen.
const nextIDMeta = "container.next_id"

// Namespace returns the namespace the pages are stored under.
func (s *SQLite[T]) Namespace() string {
	return s.ns
}

func (s *SQLite[T]) Reserve(init T) (ID, error) {
	data, err := s.codec.Marshal(init)
	if err != nil {
		return NilID, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NilID, ErrClosed
	}

	id := s.next
	tx, err := s.db.Begin()
	if err != nil {
		return NilID, err
	}
	if _, err := tx.Exec("INSERT INTO pages (ns, id, data) VALUES (?, ?, ?)", s.ns, int64(id), data); err != nil {
		tx.Rollback()
		return NilID, errors.Wrapf(err, "reserve %d", id)
	}
	counter := strconv.FormatInt(int64(id)+1, 10)
	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (ns, name, data) VALUES (?, ?, ?)", s.ns, nextIDMeta, []byte(counter)); err != nil {
		tx.Rollback()
		return NilID, errors.Wrapf(err, "reserve %d", id)
	}
	if err := tx.Commit(); err != nil {
		return NilID, errors.Wrapf(err, "reserve %d", id)
	}
	s.next++
	return id, nil
}

func (s *SQLite[T]) Get(id ID) (T, error) {
	var zero T
	var data []byte
	err := s.db.QueryRow("SELECT data FROM pages WHERE ns = ? AND id = ?", s.ns, int64(id)).Scan(&data)
	if err == sql.ErrNoRows {
		return zero, errors.Wrapf(ErrNoSuchID, "get %d", id)
	}
	if err != nil {
		return zero, errors.Wrapf(err, "get %d", id)
	}
	return s.codec.Unmarshal(data)
}

func (s *SQLite[T]) Update(id ID, v T) error {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE pages SET data = ? WHERE ns = ? AND id = ?", data, s.ns, int64(id))
	if err != nil {
		return errors.Wrapf(err, "update %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNoSuchID, "update %d", id)
	}
	return nil
}

// BatchUpdate writes several pages in one transaction.
func (s *SQLite[T]) BatchUpdate(pages map[ID]T) error {
	if len(pages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO pages (ns, id, data) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for id, v := range pages {
		data, err := s.codec.Marshal(v)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(s.ns, int64(id), data); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "batch update %d", id)
		}
	}

	return tx.Commit()
}

func (s *SQLite[T]) Remove(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM pages WHERE ns = ? AND id = ?", s.ns, int64(id))
	if err != nil {
		return errors.Wrapf(err, "remove %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNoSuchID, "remove %d", id)
	}
	return nil
}

// Len returns the number of pages in the namespace.
func (s *SQLite[T]) Len() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM pages WHERE ns = ?", s.ns).Scan(&n)
	return n, err
}

func (s *SQLite[T]) GetMeta(name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM meta WHERE ns = ? AND name = ?", s.ns, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get meta %s", name)
	}
	return data, true, nil
}

func (s *SQLite[T]) PutMeta(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (ns, name, data) VALUES (?, ?, ?)", s.ns, name, data)
	return errors.Wrapf(err, "put meta %s", name)
}

// Truncate drops every page and meta entry of the namespace. Ids keep
// increasing afterwards.
func (s *SQLite[T]) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.Exec("DELETE FROM pages WHERE ns = ?", s.ns); err != nil {
		return errors.Wrap(err, "truncate pages")
	}
	if _, err := s.db.Exec("DELETE FROM meta WHERE ns = ? AND name != ?", s.ns, nextIDMeta); err != nil {
		return errors.Wrap(err, "truncate meta")
	}
	return nil
}

func (s *SQLite[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
