package lime

import (
	"github.com/google/uuid"
	"time"
)

// Record is a single stored document. All fields live in Data, the rest is
// bookkeeping maintained by the store.
type Record struct {
	ID        string `json:"id" msgpack:"id"`
	Data      M      `json:"data" msgpack:"data"`
	CreatedAt int64  `json:"created_at" msgpack:"created_at"`
	UpdatedAt int64  `json:"updated_at" msgpack:"updated_at"`
}

func newRecord(data M) *Record {
	now := time.Now().Unix()

	return &Record{
		ID:        uuid.NewString(),
		Data:      copyData(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// replace swaps the whole field map, there is no merging.
func (r *Record) replace(data M) {
	r.Data = copyData(data)
	r.touch()
}

func (r *Record) touch() {
	now := time.Now().Unix()
	if now < r.UpdatedAt {
		// the wall clock stepped backwards, keep updates monotonic
		now = r.UpdatedAt
	}

	r.UpdatedAt = now
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Data = copyData(r.Data)
	return &cp
}

func copyData(data M) M {
	cp := make(M, len(data))
	for k, v := range data {
		cp[k] = v
	}

	return cp
}
