package tallybase

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	log "github.com/sirupsen/logrus"
)

// refToken maps a context name to a filesystem-safe ref filename.
// Every separator is replaced, not just the first; replacing only the
// first collides multi-segment names like "a/b/c" and "a/b_c" onto
// the same ref file.
func refToken(context string) string {
	return strings.ReplaceAll(context, "/", "_")
}

func (db *Db) refPath(context string) string {
	return filepath.Join(db.Dir, "refs", refToken(context))
}

// UpdateRef points context's head at hash.  An empty hash is legal
// and meaningful: the context exists but has no charges yet.  The
// write is atomic; renameio stages a temp file in the same directory
// and cleans it up if the replace fails.  There is no compare-and-swap:
// concurrent writers of the same ref are last-writer-wins.
func (db *Db) UpdateRef(context, hash string) (err error) {
	if err = ValidateContextName(context); err != nil {
		return err
	}
	if hash != "" && !ValidHash(hash) {
		return &ValidationError{Field: "hash", Msg: "must be 64 lowercase hex characters"}
	}
	abspath := db.refPath(context)
	if err = mkdir(filepath.Dir(abspath)); err != nil {
		return err
	}
	if err = renameio.WriteFile(abspath, []byte(hash), 0644); err != nil {
		return &StorageError{Op: "writeref", Path: abspath, Err: err}
	}
	log.Debugf("ref %s -> %q", context, hash)
	return nil
}

// GetRef returns context's head hash.  A missing ref file and an
// empty ref both mean "no head" and return "".
func (db *Db) GetRef(context string) (hash string, err error) {
	if err = ValidateContextName(context); err != nil {
		return "", err
	}
	buf, err := ioutil.ReadFile(db.refPath(context))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "readref", Path: db.refPath(context), Err: err}
	}
	return strings.TrimSpace(string(buf)), nil
}

// ContextExists reports whether a context is known.  "default" always
// exists, even with no ref file; every other context exists iff its
// ref file does.
func (db *Db) ContextExists(context string) (ok bool, err error) {
	if err = ValidateContextName(context); err != nil {
		return false, err
	}
	if context == DefaultContext {
		return true, nil
	}
	return canstat(db.refPath(context)), nil
}

// ListRefs returns the ref names on disk, one per context that has
// ever been written to.  Names come back in token form; the escaping
// is one-way.
func (db *Db) ListRefs() (names []string, err error) {
	dir := filepath.Join(db.Dir, "refs")
	files, err := ioutil.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "scanrefs", Path: dir, Err: err}
	}
	for _, fi := range files {
		if fi.IsDir() || strings.HasPrefix(fi.Name(), ".") {
			continue
		}
		names = append(names, fi.Name())
	}
	return names, nil
}
