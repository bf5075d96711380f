package lime

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenTable(t *testing.T) {
	t.Run("missing file starts dirty so the first save creates it", func(t *testing.T) {
		dir := t.TempDir()

		tbl, err := openTable("users", dir, nil, 0)
		require.NoError(t, err)
		assert.True(t, tbl.dirty)
		assert.Equal(t, 0, tbl.count())

		require.NoError(t, tbl.save())
		assert.False(t, tbl.dirty)
		assert.FileExists(t, filepath.Join(dir, "users.db"))
	})

	t.Run("zero byte file is a valid empty table", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "users.db"), nil, 0644))

		tbl, err := openTable("users", dir, nil, 0)
		require.NoError(t, err)
		assert.False(t, tbl.dirty)
		assert.Equal(t, 0, tbl.count())
	})

	t.Run("garbage file fails to open", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "users.db"), []byte("not a snapshot"), 0644))

		_, err := openTable("users", dir, nil, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCorruptSnapshot))
	})
}

func TestTable_Mutations(t *testing.T) {
	t.Run("insert rejects a duplicate id", func(t *testing.T) {
		tbl, err := openTable("users", t.TempDir(), nil, 0)
		require.NoError(t, err)

		rec := newRecord(M{"name": String("alice")})
		require.NoError(t, tbl.insert(rec))

		err = tbl.insert(&Record{ID: rec.ID, Data: M{}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateID))
		assert.Equal(t, 1, tbl.count())
	})

	t.Run("update of a missing record", func(t *testing.T) {
		tbl, err := openTable("users", t.TempDir(), nil, 0)
		require.NoError(t, err)

		_, err = tbl.update("nope", M{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRecordNotFound))
	})

	t.Run("delete of a missing record", func(t *testing.T) {
		tbl, err := openTable("users", t.TempDir(), nil, 0)
		require.NoError(t, err)

		err = tbl.delete("nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRecordNotFound))
	})

	t.Run("predicate sees a copy it cannot use to corrupt the index", func(t *testing.T) {
		tbl, err := openTable("users", t.TempDir(), nil, 0)
		require.NoError(t, err)

		rec := newRecord(M{"name": String("alice")})
		require.NoError(t, tbl.insert(rec))

		matched := tbl.findWhere(func(r *Record) bool {
			r.Data["name"] = String("mallory")
			return true
		})
		require.Len(t, matched, 1)

		stored, ok := tbl.findByID(rec.ID)
		require.True(t, ok)
		assert.True(t, stored.Data["name"].Equal(String("alice")))
	})
}

func TestTable_Save(t *testing.T) {
	t.Run("clean table does not touch the file", func(t *testing.T) {
		dir := t.TempDir()

		tbl, err := openTable("users", dir, nil, 0)
		require.NoError(t, err)
		require.NoError(t, tbl.insert(newRecord(M{"name": String("alice")})))
		require.NoError(t, tbl.save())

		// remove the snapshot behind the table's back, a clean save
		// must not bring it back
		require.NoError(t, os.Remove(tbl.path))
		require.NoError(t, tbl.save())
		assert.NoFileExists(t, tbl.path)

		require.NoError(t, tbl.insert(newRecord(M{"name": String("bob")})))
		require.NoError(t, tbl.save())
		assert.FileExists(t, tbl.path)
	})

	t.Run("snapshot survives reopen", func(t *testing.T) {
		dir := t.TempDir()

		tbl, err := openTable("users", dir, nil, 0)
		require.NoError(t, err)

		rec := newRecord(M{"name": String("alice"), "age": Int(25)})
		require.NoError(t, tbl.insert(rec))
		require.NoError(t, tbl.save())

		reopened, err := openTable("users", dir, nil, 0)
		require.NoError(t, err)
		require.Equal(t, 1, reopened.count())

		got, ok := reopened.findByID(rec.ID)
		require.True(t, ok)
		assertDataEqual(t, rec.Data, got.Data)
	})

	t.Run("encrypted snapshot survives reopen with the same key", func(t *testing.T) {
		dir := t.TempDir()

		key, err := GenerateKey()
		require.NoError(t, err)
		crypto, err := NewCrypto(key)
		require.NoError(t, err)

		tbl, err := openTable("users", dir, crypto, 0)
		require.NoError(t, err)

		rec := newRecord(M{"secret": String("hunter2")})
		require.NoError(t, tbl.insert(rec))
		require.NoError(t, tbl.save())

		reopened, err := openTable("users", dir, crypto, 0)
		require.NoError(t, err)

		got, ok := reopened.findByID(rec.ID)
		require.True(t, ok)
		assertDataEqual(t, rec.Data, got.Data)

		// and not without it
		_, err = openTable("users", dir, nil, 0)
		require.Error(t, err)
	})

	t.Run("oversized snapshot is rejected and the old file survives", func(t *testing.T) {
		dir := t.TempDir()

		tbl, err := openTable("users", dir, nil, 0)
		require.NoError(t, err)

		first := newRecord(M{"name": String("alice")})
		require.NoError(t, tbl.insert(first))
		require.NoError(t, tbl.save())

		before, err := os.ReadFile(tbl.path)
		require.NoError(t, err)

		capped, err := openTable("users", dir, nil, int64(len(before)))
		require.NoError(t, err)
		require.NoError(t, capped.insert(newRecord(M{"name": String("bob"), "bio": String("way too many bytes to fit")})))

		err = capped.save()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMaxFileSizeExceeded))
		assert.True(t, capped.dirty)

		after, err := os.ReadFile(tbl.path)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		reopened, err := openTable("users", dir, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, reopened.count())
	})
}

func TestTable_RemoveFile(t *testing.T) {
	dir := t.TempDir()

	tbl, err := openTable("users", dir, nil, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.save())
	require.FileExists(t, tbl.path)

	require.NoError(t, tbl.removeFile())
	assert.NoFileExists(t, tbl.path)

	// removing twice is fine
	require.NoError(t, tbl.removeFile())
}
