package tallybase

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	. "github.com/stevegt/goadapt"
)

// EnvDir overrides the default database location when set.
const EnvDir = "TALLYBASE_DIR"

// Db is a charge database.  Dir is the base directory.  Objects live
// under objects/ in subdirectories named after the first two hex
// characters of the hash, the same loose-object layout git uses; with
// SHA-256 charges numbering at most in the tens of thousands, 256
// subdirs is plenty.  Now is the clock used to stamp state
// transitions; tests inject their own.
type Db struct {
	Dir string
	Now func() time.Time
}

// DefaultDir returns $TALLYBASE_DIR, or ~/.tallybase.
func DefaultDir() (dir string) {
	dir = os.Getenv(EnvDir)
	if dir != "" {
		return
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// no home dir; fall back to cwd-relative
		return ".tallybase"
	}
	return filepath.Join(home, ".tallybase")
}

type NotDbError struct {
	Dir string
}

func (e *NotDbError) Error() string {
	return "not a database: " + e.Dir
}

type ExistsError struct {
	Dir string
}

func (e *ExistsError) Error() string {
	return "directory not empty: " + e.Dir
}

// Open loads an existing db from dir.
func Open(dir string) (db *Db, err error) {
	dir = filepath.Clean(dir)
	if !canstat(filepath.Join(dir, "objects")) {
		return nil, &NotDbError{Dir: dir}
	}
	db = &Db{Dir: dir, Now: time.Now}
	return
}

// Create initializes a db directory and its contents.
func (db Db) Create() (out *Db, err error) {
	defer Return(&err)

	dir := db.Dir

	// if directory exists, make sure it's empty
	if canstat(dir) {
		var files []os.FileInfo
		files, err = ioutil.ReadDir(dir)
		Ck(err)
		if len(files) > 0 {
			return nil, &ExistsError{Dir: dir}
		}
	}

	err = mkdir(dir)
	Ck(err)

	// hashed charge objects
	err = mkdir(filepath.Join(dir, "objects"))
	Ck(err)

	// context head pointers
	err = mkdir(filepath.Join(dir, "refs"))
	Ck(err)

	// per-context settings
	err = mkdir(filepath.Join(dir, "contexts"))
	Ck(err)

	if db.Now == nil {
		db.Now = time.Now
	}

	return &db, nil
}

func canstat(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mkdir(dir string) (err error) {
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return
}

func (db *Db) now() time.Time {
	if db.Now == nil {
		return time.Now()
	}
	return db.Now()
}
