package lime_test

import (
	"encoding/json"
	"github.com/denismitr/lime"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestValue_Kinds(t *testing.T) {
	t.Run("zero value is null", func(t *testing.T) {
		var v lime.Value
		assert.Equal(t, lime.KindNull, v.Kind())
		assert.True(t, v.IsNull())
	})

	t.Run("scalar accessors", func(t *testing.T) {
		b, ok := lime.Bool(true).AsBool()
		require.True(t, ok)
		assert.True(t, b)

		n, ok := lime.Int(-42).AsInt()
		require.True(t, ok)
		assert.Equal(t, int64(-42), n)

		f, ok := lime.Float(1.5).AsFloat()
		require.True(t, ok)
		assert.Equal(t, 1.5, f)

		s, ok := lime.String("hello").AsString()
		require.True(t, ok)
		assert.Equal(t, "hello", s)

		raw, ok := lime.Bytes([]byte{1, 2, 3}).AsBytes()
		require.True(t, ok)
		assert.Equal(t, []byte{1, 2, 3}, raw)
	})

	t.Run("mismatched accessor reports absence", func(t *testing.T) {
		_, ok := lime.Int(1).AsFloat()
		assert.False(t, ok)

		_, ok = lime.Float(1).AsInt()
		assert.False(t, ok)

		_, ok = lime.String("1").AsInt()
		assert.False(t, ok)

		_, ok = lime.Null().AsString()
		assert.False(t, ok)

		assert.False(t, lime.Bool(false).IsNull())
	})

	t.Run("containers", func(t *testing.T) {
		arr, ok := lime.Array(lime.Int(1), lime.String("two")).AsArray()
		require.True(t, ok)
		require.Len(t, arr, 2)
		assert.Equal(t, lime.KindInt, arr[0].Kind())
		assert.Equal(t, lime.KindString, arr[1].Kind())

		obj, ok := lime.Object(map[string]lime.Value{"k": lime.Int(7)}).AsObject()
		require.True(t, ok)
		require.Len(t, obj, 1)
		assert.True(t, obj["k"].Equal(lime.Int(7)))
	})
}

func TestValue_Immutability(t *testing.T) {
	t.Run("bytes payload is copied on the way in and out", func(t *testing.T) {
		src := []byte{1, 2, 3}
		v := lime.Bytes(src)

		src[0] = 99
		got, ok := v.AsBytes()
		require.True(t, ok)
		assert.Equal(t, []byte{1, 2, 3}, got)

		got[1] = 99
		again, _ := v.AsBytes()
		assert.Equal(t, []byte{1, 2, 3}, again)
	})

	t.Run("object payload is copied on the way in and out", func(t *testing.T) {
		fields := map[string]lime.Value{"a": lime.Int(1)}
		v := lime.Object(fields)

		fields["b"] = lime.Int(2)
		got, ok := v.AsObject()
		require.True(t, ok)
		assert.Len(t, got, 1)

		got["c"] = lime.Int(3)
		again, _ := v.AsObject()
		assert.Len(t, again, 1)
	})

	t.Run("array payload is copied on the way in", func(t *testing.T) {
		items := []lime.Value{lime.Int(1)}
		v := lime.Array(items...)

		items[0] = lime.Int(99)
		got, ok := v.AsArray()
		require.True(t, ok)
		assert.True(t, got[0].Equal(lime.Int(1)))
	})
}

func TestValue_Equal(t *testing.T) {
	t.Run("same kind same payload", func(t *testing.T) {
		assert.True(t, lime.Null().Equal(lime.Null()))
		assert.True(t, lime.Bool(true).Equal(lime.Bool(true)))
		assert.True(t, lime.Int(5).Equal(lime.Int(5)))
		assert.True(t, lime.Float(2.5).Equal(lime.Float(2.5)))
		assert.True(t, lime.String("x").Equal(lime.String("x")))
		assert.True(t, lime.Bytes([]byte{9}).Equal(lime.Bytes([]byte{9})))
	})

	t.Run("int never equals float", func(t *testing.T) {
		assert.False(t, lime.Int(1).Equal(lime.Float(1)))
		assert.False(t, lime.Float(1).Equal(lime.Int(1)))
	})

	t.Run("nested structures compare deeply", func(t *testing.T) {
		a := lime.Array(
			lime.Object(map[string]lime.Value{
				"id":   lime.Int(1),
				"tags": lime.Array(lime.String("a"), lime.String("b")),
			}),
		)
		b := lime.Array(
			lime.Object(map[string]lime.Value{
				"id":   lime.Int(1),
				"tags": lime.Array(lime.String("a"), lime.String("b")),
			}),
		)
		c := lime.Array(
			lime.Object(map[string]lime.Value{
				"id":   lime.Int(1),
				"tags": lime.Array(lime.String("a"), lime.String("c")),
			}),
		)

		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(c))
	})

	t.Run("element order matters in arrays", func(t *testing.T) {
		a := lime.Array(lime.Int(1), lime.Int(2))
		b := lime.Array(lime.Int(2), lime.Int(1))
		assert.False(t, a.Equal(b))
	})
}

func TestValue_MarshalJSON(t *testing.T) {
	m := lime.M{
		"arr": lime.Array(lime.Int(1), lime.String("two")),
		"b":   lime.Bool(true),
		"f":   lime.Float(1.5),
		"i":   lime.Int(-5),
		"obj": lime.Object(map[string]lime.Value{"k": lime.Int(7)}),
		"raw": lime.Bytes([]byte{1, 2, 3}),
		"s":   lime.String("hi"),
		"z":   lime.Null(),
	}

	b, err := json.Marshal(m)
	require.NoError(t, err)

	expected := `{"arr":[1,"two"],"b":true,"f":1.5,"i":-5,"obj":{"k":7},"raw":"AQID","s":"hi","z":null}`
	assert.Equal(t, expected, string(b))
}

func TestParseData(t *testing.T) {
	t.Run("number literals map to int or float", func(t *testing.T) {
		m, err := lime.ParseData([]byte(`{"age":30,"neg":-7,"score":9.5,"exp":1e3,"big":9223372036854775808}`))
		require.NoError(t, err)

		age, ok := m["age"].AsInt()
		require.True(t, ok)
		assert.Equal(t, int64(30), age)

		neg, ok := m["neg"].AsInt()
		require.True(t, ok)
		assert.Equal(t, int64(-7), neg)

		assert.Equal(t, lime.KindFloat, m["score"].Kind())
		assert.Equal(t, lime.KindFloat, m["exp"].Kind())

		// does not fit into int64, falls back to float
		assert.Equal(t, lime.KindFloat, m["big"].Kind())
	})

	t.Run("nested arrays and objects", func(t *testing.T) {
		m, err := lime.ParseData([]byte(`{"user":{"name":"bob","tags":["a","b"]},"flags":[true,null]}`))
		require.NoError(t, err)

		user, ok := m["user"].AsObject()
		require.True(t, ok)

		name, ok := user["name"].AsString()
		require.True(t, ok)
		assert.Equal(t, "bob", name)

		tags, ok := user["tags"].AsArray()
		require.True(t, ok)
		require.Len(t, tags, 2)

		flags, ok := m["flags"].AsArray()
		require.True(t, ok)
		require.Len(t, flags, 2)
		assert.True(t, flags[1].IsNull())
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := lime.ParseData([]byte(`{"a":`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, lime.ErrInvalidData))
	})

	t.Run("rejects non object top level", func(t *testing.T) {
		_, err := lime.ParseData([]byte(`[1,2,3]`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, lime.ErrInvalidData))
	})

	t.Run("nesting depth is capped", func(t *testing.T) {
		ok := []byte(`{"a":` + strings.Repeat(`[`, 64) + strings.Repeat(`]`, 64) + `}`)
		_, err := lime.ParseData(ok)
		require.NoError(t, err)

		tooDeep := []byte(`{"a":` + strings.Repeat(`[`, 65) + strings.Repeat(`]`, 65) + `}`)
		_, err = lime.ParseData(tooDeep)
		require.Error(t, err)
		assert.True(t, errors.Is(err, lime.ErrValueTooDeep))
	})
}
