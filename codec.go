package lime

import (
	"bytes"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"io"
	"sort"
)

var ErrCorruptSnapshot = errors.New("snapshot is corrupt")

// allocation hint cap for sizes read from the wire
const maxDecodeHint = 1024

// encodeSnapshot serializes the full id to record mapping. Entries and object
// keys are written in sorted order so that identical contents always produce
// identical bytes.
func encodeSnapshot(records map[string]*Record) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)

	if err := enc.EncodeMapLen(len(records)); err != nil {
		return nil, errors.Wrap(err, "could not encode snapshot header")
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := enc.EncodeString(id); err != nil {
			return nil, errors.Wrapf(err, "could not encode id %s", id)
		}

		if err := encodeRecord(enc, records[id]); err != nil {
			return nil, errors.Wrapf(err, "could not encode record %s", id)
		}
	}

	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (map[string]*Record, error) {
	records := make(map[string]*Record)
	if len(data) == 0 {
		return records, nil
	}

	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(data))

	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	for i := 0; i < n; i++ {
		id, err := dec.DecodeString()
		if err != nil {
			return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}

		rec, err := decodeRecord(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "record %s", id)
		}

		if rec.ID != id {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "record id %s does not match index key %s", rec.ID, id)
		}

		if _, ok := records[id]; ok {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "duplicate record id %s", id)
		}

		records[id] = rec
	}

	if _, err := dec.PeekCode(); err != io.EOF {
		return nil, errors.Wrap(ErrCorruptSnapshot, "trailing bytes after last record")
	}

	return records, nil
}

func encodeRecord(enc *msgpack.Encoder, r *Record) error {
	if err := enc.EncodeMapLen(4); err != nil {
		return err
	}

	if err := enc.EncodeString("id"); err != nil {
		return err
	}
	if err := enc.EncodeString(r.ID); err != nil {
		return err
	}

	if err := enc.EncodeString("data"); err != nil {
		return err
	}
	if err := encodeData(enc, r.Data); err != nil {
		return err
	}

	if err := enc.EncodeString("created_at"); err != nil {
		return err
	}
	if err := enc.EncodeInt(r.CreatedAt); err != nil {
		return err
	}

	if err := enc.EncodeString("updated_at"); err != nil {
		return err
	}
	if err := enc.EncodeInt(r.UpdatedAt); err != nil {
		return err
	}

	return nil
}

func decodeRecord(dec *msgpack.Decoder) (*Record, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	rec := &Record{Data: make(M)}

	for i := 0; i < n; i++ {
		field, err := dec.DecodeString()
		if err != nil {
			return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}

		switch field {
		case "id":
			if rec.ID, err = dec.DecodeString(); err != nil {
				return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
			}
		case "data":
			if rec.Data, err = decodeData(dec); err != nil {
				return nil, err
			}
		case "created_at":
			if rec.CreatedAt, err = dec.DecodeInt64(); err != nil {
				return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
			}
		case "updated_at":
			if rec.UpdatedAt, err = dec.DecodeInt64(); err != nil {
				return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
			}
		default:
			return nil, errors.Wrapf(ErrCorruptSnapshot, "unknown record field %q", field)
		}
	}

	if rec.ID == "" {
		return nil, errors.Wrap(ErrCorruptSnapshot, "record has no id")
	}

	return rec, nil
}

func encodeData(enc *msgpack.Encoder, m M) error {
	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}

	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		if err := enc.EncodeString(f); err != nil {
			return err
		}

		if err := encodeValue(enc, m[f], 1); err != nil {
			return errors.Wrapf(err, "field %s", f)
		}
	}

	return nil
}

func decodeData(dec *msgpack.Decoder) (M, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	if n <= 0 {
		return make(M), nil
	}

	m := make(M, min(n, maxDecodeHint))

	for i := 0; i < n; i++ {
		field, err := dec.DecodeString()
		if err != nil {
			return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}

		v, err := decodeValue(dec, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", field)
		}

		m[field] = v
	}

	return m, nil
}

func encodeValue(enc *msgpack.Encoder, v Value, depth int) error {
	if depth > MaxDepth {
		return errors.Wrapf(ErrValueTooDeep, "nesting exceeds %d levels", MaxDepth)
	}

	if err := enc.EncodeUint8(uint8(v.kind)); err != nil {
		return err
	}

	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindInt:
		return enc.EncodeInt(v.n)
	case KindFloat:
		return enc.EncodeFloat64(v.f)
	case KindString:
		return enc.EncodeString(v.s)
	case KindBytes:
		return enc.EncodeBytes(v.raw)
	case KindArray:
		if err := enc.EncodeArrayLen(len(v.arr)); err != nil {
			return err
		}
		for i := range v.arr {
			if err := encodeValue(enc, v.arr[i], depth+1); err != nil {
				return err
			}
		}
		return nil
	case KindObject:
		if err := enc.EncodeMapLen(len(v.obj)); err != nil {
			return err
		}

		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := encodeValue(enc, v.obj[k], depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	return errors.Errorf("unsupported value kind %d", v.kind)
}

func decodeValue(dec *msgpack.Decoder, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, errors.Wrapf(ErrValueTooDeep, "nesting exceeds %d levels", MaxDepth)
	}

	kind, err := dec.DecodeUint8()
	if err != nil {
		return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	switch Kind(kind) {
	case KindNull:
		return Null(), nil
	case KindBool:
		b, err := dec.DecodeBool()
		if err != nil {
			return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		return Bool(b), nil
	case KindInt:
		n, err := dec.DecodeInt64()
		if err != nil {
			return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		return Int(n), nil
	case KindFloat:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		return Float(f), nil
	case KindString:
		s, err := dec.DecodeString()
		if err != nil {
			return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		return String(s), nil
	case KindBytes:
		b, err := dec.DecodeBytes()
		if err != nil {
			return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		return Value{kind: KindBytes, raw: b}, nil
	case KindArray:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		if n < 0 {
			n = 0
		}

		items := make([]Value, 0, min(n, maxDecodeHint))
		for i := 0; i < n; i++ {
			item, err := decodeValue(dec, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{kind: KindArray, arr: items}, nil
	case KindObject:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		if n < 0 {
			n = 0
		}

		fields := make(map[string]Value, min(n, maxDecodeHint))
		for i := 0; i < n; i++ {
			k, err := dec.DecodeString()
			if err != nil {
				return Value{}, errors.Wrap(ErrCorruptSnapshot, err.Error())
			}

			item, err := decodeValue(dec, depth+1)
			if err != nil {
				return Value{}, errors.Wrapf(err, "key %s", k)
			}

			fields[k] = item
		}
		return Value{kind: KindObject, obj: fields}, nil
	}

	return Value{}, errors.Wrapf(ErrCorruptSnapshot, "unknown value kind %d", kind)
}
