package queue

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/storage/dbm"
	"github.com/zond/ticktrace/structs"
)

var (
	ErrClosed = errors.New("queue is closed")
)

// Queue is a persistent FIFO of outbound reports, backed by a B-tree keyed
// by a monotonic counter. Reports survive restarts until they are drained.
type Queue struct {
	tree   *dbm.TypeTree[structs.Report, *structs.Report]
	mu     sync.Mutex
	closed bool
}

func New(t *dbm.TypeTree[structs.Report, *structs.Report]) *Queue {
	return &Queue{
		tree: t,
	}
}

// Close makes further pushes fail. Queued reports stay in the tree.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *Queue) Push(ctx context.Context, tick uint64, text string) (*structs.Report, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ticktrace.WithStack(ErrClosed)
	}
	report := &structs.Report{
		Tick:    tick,
		Created: time.Now().UnixNano(),
		Text:    text,
	}
	report.CreateKey()
	if err := q.tree.Set(report.Key, report, false); err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return report, nil
}

func (q *Queue) peekFirst() (*structs.Report, error) {
	res, err := q.tree.First()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return res, nil
}

// Pending returns up to limit queued reports in FIFO order without removing
// them. A limit <= 0 returns all of them.
func (q *Queue) Pending(limit int) ([]*structs.Report, error) {
	result := []*structs.Report{}
	if err := q.tree.Each("", func(_ string, r *structs.Report) (bool, error) {
		result = append(result, r)
		return limit <= 0 || len(result) < limit, nil
	}); err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return result, nil
}

type Sender func(context.Context, *structs.Report) error

// Drain hands up to limit of the oldest reports to send, oldest first.
// A report is removed only once send has accepted it; the first send error
// stops the batch and is returned together with the number of reports sent.
func (q *Queue) Drain(ctx context.Context, limit int, send Sender) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sent := 0
	for sent < limit {
		if err := ctx.Err(); err != nil {
			return sent, ticktrace.WithStack(err)
		}
		next, err := q.peekFirst()
		if err != nil {
			return sent, ticktrace.WithStack(err)
		}
		if next == nil {
			break
		}
		if err := send(ctx, next); err != nil {
			return sent, ticktrace.WithStack(err)
		}
		if err := q.tree.Del(next.Key); err != nil {
			return sent, ticktrace.WithStack(err)
		}
		sent++
	}
	return sent, nil
}
