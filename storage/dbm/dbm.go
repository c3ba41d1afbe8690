package dbm

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/estraier/tkrzw-go"
	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/structs"
)

type Hash struct {
	dbm   *tkrzw.DBM
	mutex *sync.RWMutex
}

func (h *Hash) Get(k string) ([]byte, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	b, stat := h.dbm.Get(k)
	if stat.GetCode() == tkrzw.StatusNotFoundError {
		return nil, ticktrace.WithStack(os.ErrNotExist)
	} else if !stat.IsOK() {
		return nil, ticktrace.WithStack(stat)
	}
	return b, nil
}

func (h *Hash) Has(k string) (bool, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, stat := h.dbm.Get(k)
	if stat.GetCode() == tkrzw.StatusNotFoundError {
		return false, nil
	} else if !stat.IsOK() {
		return false, ticktrace.WithStack(stat)
	}
	return true, nil
}

// Set stores v at k. Without overwrite, an existing value is left alone and
// os.ErrExist is returned.
func (h *Hash) Set(k string, v []byte, overwrite bool) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if stat := h.dbm.Set(k, v, overwrite); stat.GetCode() == tkrzw.StatusDuplicationError {
		return ticktrace.WithStack(os.ErrExist)
	} else if !stat.IsOK() {
		return ticktrace.WithStack(stat)
	}
	return nil
}

func (h *Hash) Del(k string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if stat := h.dbm.Remove(k); stat.GetCode() == tkrzw.StatusNotFoundError {
		return ticktrace.WithStack(os.ErrNotExist)
	} else if !stat.IsOK() {
		return ticktrace.WithStack(stat)
	}
	return nil
}

func (h *Hash) Count() (int64, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	count, stat := h.dbm.Count()
	if !stat.IsOK() {
		return 0, ticktrace.WithStack(stat)
	}
	return count, nil
}

func (h *Hash) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if stat := h.dbm.Close(); !stat.IsOK() {
		return ticktrace.WithStack(stat)
	}
	return nil
}

type TypeHash[T any, S structs.Serializable[T]] struct {
	*Hash
}

func (h *TypeHash[T, S]) Get(k string) (*T, error) {
	b, err := h.Hash.Get(k)
	if err != nil {
		return nil, err
	}
	t := S(new(T))
	if err := t.Unmarshal(b); err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return (*T)(t), nil
}

func (h *TypeHash[T, S]) Set(k string, v *T, overwrite bool) error {
	s := S(v)
	b := make([]byte, s.Size())
	s.Marshal(b)
	return h.Hash.Set(k, b, overwrite)
}

type Tree struct {
	*Hash
}

type TypeTree[T any, S structs.Serializable[T]] struct {
	*TypeHash[T, S]
}

func (t *TypeTree[T, S]) First() (*T, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	iter := t.dbm.MakeIterator()
	defer iter.Destruct()
	if stat := iter.First(); !stat.IsOK() {
		return nil, ticktrace.WithStack(stat)
	}
	_, b, stat := iter.Get()
	if stat.GetCode() == tkrzw.StatusNotFoundError {
		return nil, ticktrace.WithStack(os.ErrNotExist)
	} else if !stat.IsOK() {
		return nil, ticktrace.WithStack(stat)
	}
	first := S(new(T))
	if err := first.Unmarshal(b); err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return (*T)(first), nil
}

// Each calls f for every record whose key starts with prefix, in key order,
// until f returns false or an error. The tree is read locked while iterating,
// so f must not write to it.
func (t *TypeTree[T, S]) Each(prefix string, f func(key string, value *T) (bool, error)) error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	iter := t.dbm.MakeIterator()
	defer iter.Destruct()
	stat := iter.Jump(prefix)
	if stat.GetCode() == tkrzw.StatusNotFoundError {
		return nil
	} else if !stat.IsOK() {
		return ticktrace.WithStack(stat)
	}
	for {
		key, b, stat := iter.Get()
		if stat.GetCode() == tkrzw.StatusNotFoundError {
			return nil
		} else if !stat.IsOK() {
			return ticktrace.WithStack(stat)
		}
		if !strings.HasPrefix(string(key), prefix) {
			return nil
		}
		value := S(new(T))
		if err := value.Unmarshal(b); err != nil {
			return ticktrace.WithStack(err)
		}
		if cont, err := f(string(key), (*T)(value)); err != nil {
			return ticktrace.WithStack(err)
		} else if !cont {
			return nil
		}
		if stat := iter.Next(); stat.GetCode() == tkrzw.StatusNotFoundError {
			return nil
		} else if !stat.IsOK() {
			return ticktrace.WithStack(stat)
		}
	}
}

func OpenHash(path string) (*Hash, error) {
	dbm := tkrzw.NewDBM()
	stat := dbm.Open(fmt.Sprintf("%s.tkh", path), true, map[string]string{
		"update_mode":      "UPDATE_APPENDING",
		"record_comp_mode": "RECORD_COMP_NONE",
		"restore_mode":     "RESTORE_SYNC|RESTORE_NO_SHORTCUTS|RESTORE_WITH_HARDSYNC",
	})
	if !stat.IsOK() {
		return nil, ticktrace.WithStack(stat)
	}
	return &Hash{dbm, &sync.RWMutex{}}, nil
}

func OpenTypeHash[T any, S structs.Serializable[T]](path string) (*TypeHash[T, S], error) {
	h, err := OpenHash(path)
	if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return &TypeHash[T, S]{h}, nil
}

func OpenTree(path string) (*Tree, error) {
	dbm := tkrzw.NewDBM()
	stat := dbm.Open(fmt.Sprintf("%s.tkt", path), true, map[string]string{
		"update_mode":      "UPDATE_APPENDING",
		"record_comp_mode": "RECORD_COMP_NONE",
		"key_comparator":   "LexicalKeyComparator",
	})
	if !stat.IsOK() {
		return nil, ticktrace.WithStack(stat)
	}
	return &Tree{&Hash{dbm, &sync.RWMutex{}}}, nil
}

func OpenTypeTree[T any, S structs.Serializable[T]](path string) (*TypeTree[T, S], error) {
	t, err := OpenTree(path)
	if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return &TypeTree[T, S]{&TypeHash[T, S]{t.Hash}}, nil
}
