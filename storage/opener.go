package storage

import (
	"path/filepath"

	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/storage/dbm"
	"github.com/zond/ticktrace/structs"
)

type opener struct {
	Dir string
	Err error
}

func (o *opener) OpenHash(name string) *dbm.Hash {
	if o.Err != nil {
		return nil
	}
	h, err := dbm.OpenHash(filepath.Join(o.Dir, name))
	if err != nil {
		o.Err = ticktrace.WithStack(err)
	}
	return h
}

func openTypeTree[T any, S structs.Serializable[T]](o *opener, name string) *dbm.TypeTree[T, S] {
	if o.Err != nil {
		return nil
	}
	t, err := dbm.OpenTypeTree[T, S](filepath.Join(o.Dir, name))
	if err != nil {
		o.Err = ticktrace.WithStack(err)
	}
	return t
}
