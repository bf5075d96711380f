package lime

import (
	"github.com/pkg/errors"
	"os"
	"path/filepath"
)

var ErrRecordNotFound = errors.New("record not found")
var ErrDuplicateID = errors.New("duplicate record id")
var ErrMaxFileSizeExceeded = errors.New("snapshot exceeds max file size")

const tableFileExt = ".db"

// table keeps every record of one named collection in memory and mirrors it
// to a single snapshot file. dirty tracks whether memory has diverged from
// the file since the last save.
type table struct {
	name    string
	path    string
	crypto  *Crypto
	maxSize int64
	records map[string]*Record
	dirty   bool
}

func openTable(name, dir string, crypto *Crypto, maxSize int64) (*table, error) {
	t := &table{
		name:    name,
		path:    filepath.Join(dir, name+tableFileExt),
		crypto:  crypto,
		maxSize: maxSize,
		records: make(map[string]*Record),
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			// no snapshot yet, the first save must create one even if
			// the table stays empty
			t.dirty = true
			return t, nil
		}

		return nil, errors.Wrapf(err, "could not read table file %s", t.path)
	}

	// a zero byte file is a valid empty table
	if len(data) > 0 {
		if t.crypto != nil {
			data, err = t.crypto.Decrypt(data)
			if err != nil {
				return nil, errors.Wrapf(err, "table %s", name)
			}
		}

		records, err := decodeSnapshot(data)
		if err != nil {
			return nil, errors.Wrapf(err, "table %s", name)
		}

		t.records = records
	}

	return t, nil
}

func (t *table) insert(rec *Record) error {
	if _, ok := t.records[rec.ID]; ok {
		return errors.Wrapf(ErrDuplicateID, "id %s in table %s", rec.ID, t.name)
	}

	t.records[rec.ID] = rec
	t.dirty = true
	return nil
}

func (t *table) findByID(id string) (*Record, bool) {
	rec, ok := t.records[id]
	if !ok {
		return nil, false
	}

	return rec.clone(), true
}

func (t *table) update(id string, data M) (*Record, error) {
	rec, ok := t.records[id]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %s in table %s", id, t.name)
	}

	rec.replace(data)
	t.dirty = true
	return rec.clone(), nil
}

func (t *table) delete(id string) error {
	if _, ok := t.records[id]; !ok {
		return errors.Wrapf(ErrRecordNotFound, "id %s in table %s", id, t.name)
	}

	delete(t.records, id)
	t.dirty = true
	return nil
}

func (t *table) findAll() []*Record {
	result := make([]*Record, 0, len(t.records))
	for _, rec := range t.records {
		result = append(result, rec.clone())
	}

	return result
}

func (t *table) findWhere(pred func(*Record) bool) []*Record {
	result := make([]*Record, 0)
	for _, rec := range t.records {
		cp := rec.clone()
		if pred(cp) {
			result = append(result, cp)
		}
	}

	return result
}

func (t *table) count() int {
	return len(t.records)
}

// save rewrites the whole snapshot. On any failure the table stays dirty and
// the old file is left untouched.
func (t *table) save() error {
	if !t.dirty {
		return nil
	}

	data, err := encodeSnapshot(t.records)
	if err != nil {
		return errors.Wrapf(err, "table %s", t.name)
	}

	if t.crypto != nil {
		data, err = t.crypto.Encrypt(data)
		if err != nil {
			return errors.Wrapf(err, "table %s", t.name)
		}
	}

	if t.maxSize > 0 && int64(len(data)) > t.maxSize {
		return errors.Wrapf(ErrMaxFileSizeExceeded, "table %s snapshot is %d bytes, limit is %d", t.name, len(data), t.maxSize)
	}

	if err := writeAndSwap(t.path, data); err != nil {
		return errors.Wrapf(err, "table %s", t.name)
	}

	t.dirty = false
	return nil
}

func (t *table) removeFile() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not remove table file %s", t.path)
	}

	return nil
}

// writeAndSwap writes data to a temp file next to path and renames it into
// place, so readers never observe a half written snapshot.
func writeAndSwap(path string, data []byte) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", tmp)
	}

	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	if _, err := f.Write(data); err != nil {
		return errors.Wrapf(err, "could not write %s", tmp)
	}

	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "could not sync %s", tmp)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "could not close %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "could not swap %s for %s", path, tmp)
	}

	return nil
}
