// Package lime is an embedded document store. Records live in named tables,
// each table is held fully in memory and persisted as a single snapshot file
// that can optionally be encrypted at rest.
//
// A Store is not safe for concurrent use. Callers sharing one Store across
// goroutines must serialize access to it.
package lime

import (
	"github.com/gofrs/flock"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
	"os"
	"path/filepath"
	"strings"
)

var ErrTableNotFound = errors.New("table not found")
var ErrStoreClosed = errors.New("store already closed")
var ErrDataDirLocked = errors.New("data directory is locked by another process")
var ErrInvalidTableName = errors.New("invalid table name")

const lockFileName = ".lock"
const maxTableNameLen = 120

const tableCastPanic = "how could registry item not be of type *table"

type Store struct {
	cfg    Config
	crypto *Crypto
	flock  *flock.Flock
	tables *btree.BTree
	closed bool
}

func byTableNames(a, b interface{}) bool {
	t1, t2 := a.(*table), b.(*table)
	return t1.name < t2.name
}

// Open prepares the data directory, takes exclusive ownership of it and
// loads every table snapshot found inside. A single unreadable table fails
// the whole open.
func Open(cfg Config) (*Store, error) {
	var c Config
	if err := copier.Copy(&c, &cfg); err != nil {
		panic("could not copy config + " + err.Error())
	}

	if err := c.applyDefaults(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create data directory %s", c.DataDir)
	}

	var crypto *Crypto
	if len(c.EncryptionKey) > 0 {
		cr, err := NewCrypto(c.EncryptionKey)
		if err != nil {
			return nil, err
		}
		crypto = cr
	}

	fl := flock.New(filepath.Join(c.DataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "could not lock data directory %s", c.DataDir)
	}
	if !locked {
		return nil, errors.Wrapf(ErrDataDirLocked, "directory %s", c.DataDir)
	}

	s := &Store{
		cfg:    c,
		crypto: crypto,
		flock:  fl,
		tables: btree.NewNonConcurrent(byTableNames),
	}

	if err := s.scanDataDir(); err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	return s, nil
}

func (s *Store) scanDataDir() error {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		return errors.Wrapf(err, "could not scan data directory %s", s.cfg.DataDir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tableFileExt) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), tableFileExt)
		if err := validateTableName(name); err != nil {
			return errors.Wrapf(err, "file %s", entry.Name())
		}

		t, err := openTable(name, s.cfg.DataDir, s.crypto, s.cfg.MaxFileSize)
		if err != nil {
			return err
		}

		s.tables.Set(t)
	}

	return nil
}

// CreateTable registers an empty table. Creating a table that already exists
// is a no-op.
func (s *Store) CreateTable(name string) error {
	if s.closed {
		return ErrStoreClosed
	}

	if err := validateTableName(name); err != nil {
		return err
	}

	if s.tables.Get(&table{name: name}) != nil {
		return nil
	}

	t, err := openTable(name, s.cfg.DataDir, s.crypto, s.cfg.MaxFileSize)
	if err != nil {
		return err
	}

	s.tables.Set(t)
	return nil
}

// DropTable forgets the table and removes its snapshot file. Dropping an
// unknown table is a no-op.
func (s *Store) DropTable(name string) error {
	if s.closed {
		return ErrStoreClosed
	}

	found := s.tables.Get(&table{name: name})
	if found == nil {
		return nil
	}

	t, ok := found.(*table)
	if !ok {
		panic(tableCastPanic)
	}

	if err := t.removeFile(); err != nil {
		return err
	}

	s.tables.Delete(&table{name: name})
	return nil
}

// Insert stores data as a new record and returns it. The table is created on
// the fly when it does not exist yet.
func (s *Store) Insert(tableName string, data M) (*Record, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	if err := data.validate(); err != nil {
		return nil, err
	}

	if err := s.CreateTable(tableName); err != nil {
		return nil, err
	}

	t, err := s.getTable(tableName)
	if err != nil {
		return nil, err
	}

	rec := newRecord(data)
	if err := t.insert(rec); err != nil {
		return nil, err
	}

	return rec.clone(), nil
}

// FindByID returns a copy of the record. A missing id is reported through
// the bool, not as an error.
func (s *Store) FindByID(tableName, id string) (*Record, bool, error) {
	if s.closed {
		return nil, false, ErrStoreClosed
	}

	t, err := s.getTable(tableName)
	if err != nil {
		return nil, false, err
	}

	rec, ok := t.findByID(id)
	return rec, ok, nil
}

// Update replaces the whole field map of an existing record.
func (s *Store) Update(tableName, id string, data M) (*Record, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	if err := data.validate(); err != nil {
		return nil, err
	}

	t, err := s.getTable(tableName)
	if err != nil {
		return nil, err
	}

	return t.update(id, data)
}

func (s *Store) Delete(tableName, id string) error {
	if s.closed {
		return ErrStoreClosed
	}

	t, err := s.getTable(tableName)
	if err != nil {
		return err
	}

	return t.delete(id)
}

// FindAll returns copies of every record in the table, in no particular
// order.
func (s *Store) FindAll(tableName string) ([]*Record, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	t, err := s.getTable(tableName)
	if err != nil {
		return nil, err
	}

	return t.findAll(), nil
}

// FindWhere returns copies of the records matching pred, in no particular
// order.
func (s *Store) FindWhere(tableName string, pred func(*Record) bool) ([]*Record, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	t, err := s.getTable(tableName)
	if err != nil {
		return nil, err
	}

	return t.findWhere(pred), nil
}

func (s *Store) Count(tableName string) (int, error) {
	if s.closed {
		return 0, ErrStoreClosed
	}

	t, err := s.getTable(tableName)
	if err != nil {
		return 0, err
	}

	return t.count(), nil
}

// ListTables returns all table names in ascending order.
func (s *Store) ListTables() ([]string, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	names := make([]string, 0, s.tables.Len())
	s.tables.Ascend(nil, func(i interface{}) bool {
		t, ok := i.(*table)
		if !ok {
			panic(tableCastPanic)
		}

		names = append(names, t.name)
		return true
	})

	return names, nil
}

// SaveAll flushes every dirty table in ascending name order and stops at the
// first failure, leaving that table dirty.
func (s *Store) SaveAll() error {
	if s.closed {
		return ErrStoreClosed
	}

	return s.saveAll()
}

func (s *Store) saveAll() error {
	var ferr error
	s.tables.Ascend(nil, func(i interface{}) bool {
		t, ok := i.(*table)
		if !ok {
			panic(tableCastPanic)
		}

		if err := t.save(); err != nil {
			ferr = err
			return false
		}

		return true
	})

	return ferr
}

// Close flushes all dirty tables and releases the data directory. The store
// is unusable afterwards even when the flush failed.
func (s *Store) Close() error {
	if s.closed {
		return ErrStoreClosed
	}

	saveErr := s.saveAll()

	if err := s.flock.Unlock(); err != nil && saveErr == nil {
		saveErr = errors.Wrapf(err, "could not unlock data directory %s", s.cfg.DataDir)
	}

	s.tables = nil
	s.crypto = nil
	s.flock = nil
	s.closed = true

	return saveErr
}

func (s *Store) getTable(name string) (*table, error) {
	found := s.tables.Get(&table{name: name})
	if found == nil {
		return nil, errors.Wrapf(ErrTableNotFound, "table %s", name)
	}

	t, ok := found.(*table)
	if !ok {
		panic(tableCastPanic)
	}

	return t, nil
}

func validateTableName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidTableName, "name is empty")
	}

	if len(name) > maxTableNameLen {
		return errors.Wrapf(ErrInvalidTableName, "name %s is longer than %d bytes", name, maxTableNameLen)
	}

	if strings.ContainsAny(name, `/\`) {
		return errors.Wrapf(ErrInvalidTableName, "name %s contains a path separator", name)
	}

	if strings.HasPrefix(name, ".") {
		return errors.Wrapf(ErrInvalidTableName, "name %s starts with a dot", name)
	}

	return nil
}
