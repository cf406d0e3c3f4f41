// Package boltdbtest provides BoltDB databases for read-model tests.
package boltdbtest

import (
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// Open opens an empty BoltDB database in a new temporary directory.
//
// The returned function closes the database and removes the directory. It
// must be used instead of DB.Close().
func Open() (*bbolt.DB, func()) {
	path, remove := TempFile()

	db, err := bbolt.Open(path, 0600, &bbolt.Options{NoSync: true})
	if err != nil {
		remove()
		panic(err)
	}

	return db, func() {
		_ = db.Close()
		remove()
	}
}

// TempFile returns the path of a database file within a new temporary
// directory. The file itself is not created.
//
// The returned function removes the directory and everything in it.
func TempFile() (string, func()) {
	dir, err := os.MkdirTemp("", "processkit-")
	if err != nil {
		panic(err)
	}

	return filepath.Join(dir, "readmodel.boltdb"), func() {
		_ = os.RemoveAll(dir)
	}
}
