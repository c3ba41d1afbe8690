package structs

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zond/ticktrace"

	bstd "github.com/deneonet/benc/std"
)

var (
	lastReportCounter uint64 = 0
)

// Serializable is implemented by pointers to records stored in the typed
// dbm hashes and trees.
type Serializable[T any] interface {
	*T
	Size() int
	Marshal([]byte)
	Unmarshal([]byte) error
}

// Distance is a number of zone hops. Unreachable marks pairs with no path.
type Distance int64

const (
	Unreachable Distance = math.MaxInt64
)

func (d Distance) Reachable() bool {
	return d != Unreachable
}

func (d Distance) String() string {
	if !d.Reachable() {
		return "Infinity"
	}
	return fmt.Sprint(int64(d))
}

func (d *Distance) Size() int {
	return bstd.SizeInt64()
}

func (d *Distance) Marshal(b []byte) {
	bstd.MarshalInt64(0, b, int64(*d))
}

func (d *Distance) Unmarshal(b []byte) error {
	_, v, err := bstd.UnmarshalInt64(0, b)
	if err != nil {
		return ticktrace.WithStack(err)
	}
	*d = Distance(v)
	return nil
}

// Report is a queued outbound notification.
type Report struct {
	Key     string
	Tick    uint64
	Created int64
	Text    string
}

// CreateKey gives the report a key that sorts after every previously
// created report.
func (r *Report) CreateKey() {
	counter := ticktrace.Increment(&lastReportCounter)
	k := make([]byte, binary.Size(counter))
	binary.BigEndian.PutUint64(k, counter)
	r.Key = string(k)
}

func (r *Report) Size() int {
	return bstd.SizeString(r.Key) + bstd.SizeUint64() + bstd.SizeInt64() + bstd.SizeString(r.Text)
}

func (r *Report) Marshal(b []byte) {
	n := bstd.MarshalString(0, b, r.Key)
	n = bstd.MarshalUint64(n, b, r.Tick)
	n = bstd.MarshalInt64(n, b, r.Created)
	bstd.MarshalString(n, b, r.Text)
}

func (r *Report) Unmarshal(b []byte) error {
	n, key, err := bstd.UnmarshalString(0, b)
	if err != nil {
		return ticktrace.WithStack(err)
	}
	n, tick, err := bstd.UnmarshalUint64(n, b)
	if err != nil {
		return ticktrace.WithStack(err)
	}
	n, created, err := bstd.UnmarshalInt64(n, b)
	if err != nil {
		return ticktrace.WithStack(err)
	}
	_, text, err := bstd.UnmarshalString(n, b)
	if err != nil {
		return ticktrace.WithStack(err)
	}
	r.Key, r.Tick, r.Created, r.Text = key, tick, created, text
	return nil
}
