package tallybase

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	db := setup(t)

	charge := mkcharge("Fix bug", 2, "2021-06-15T12:00:00Z")
	charge.GitCommits = []string{"abc1234", "deadbeefcafe"}
	hash, err := db.PutCharge(charge)
	tassert(t, err == nil, "put: %v", err)
	tassert(t, ValidHash(hash), "bad hash %q", hash)

	got, err := db.GetCharge(hash)
	tassert(t, err == nil, "get: %v", err)
	tassert(t, got != nil, "stored charge not found")
	tassert(t, got.Id == hash, "id not attached: %q", got.Id)

	want := *charge
	want.Id = hash
	tassert(t, deepEqual(got, &want), "round trip mismatch:\n%s\n%s", pretty(got), pretty(&want))
}

func TestPutIdempotent(t *testing.T) {
	db := setup(t)

	charge := mkcharge("Fix bug", 2, "2021-06-15T12:00:00Z")
	hash1, err := db.PutCharge(charge)
	tassert(t, err == nil, "put: %v", err)
	hash2, err := db.PutCharge(charge)
	tassert(t, err == nil, "second put: %v", err)
	tassert(t, hash1 == hash2, "idempotent put changed hash: %s %s", hash1, hash2)

	// never a second file under the shard
	shard := filepath.Join(db.Dir, "objects", hash1[:2])
	files, err := ioutil.ReadDir(shard)
	tassert(t, err == nil, "readdir: %v", err)
	tassert(t, len(files) == 1, "expected 1 object file, found %d", len(files))
	tassert(t, files[0].Name() == hash1[2:], "unexpected file %q", files[0].Name())
}

func TestGetMissing(t *testing.T) {
	db := setup(t)

	// well-formed but nonexistent: nil, not an error
	charge, err := db.GetCharge(strings.Repeat("0", 64))
	tassert(t, err == nil, "expected nil error, got %v", err)
	tassert(t, charge == nil, "expected nil charge, got %v", charge)

	// malformed hash is a validation error, not a lookup miss
	_, err = db.GetCharge("zzz")
	_, ok := err.(*ValidationError)
	tassert(t, ok, "expected ValidationError, got %T: %v", err, err)
}

func TestGetCorrupt(t *testing.T) {
	db := setup(t)

	charge := mkcharge("Fix bug", 2, "2021-06-15T12:00:00Z")
	hash, err := db.PutCharge(charge)
	tassert(t, err == nil, "put: %v", err)

	// stomp the object file with bytes that aren't gzip
	abspath := db.objectPath(hash)
	err = ioutil.WriteFile(abspath, []byte("not gzip"), 0644)
	tassert(t, err == nil, "stomp: %v", err)

	_, err = db.GetCharge(hash)
	tassert(t, err != nil, "corrupt object read silently")
	cerr, ok := err.(*CorruptError)
	tassert(t, ok, "expected CorruptError, got %T: %v", err, err)
	tassert(t, cerr.Hash == hash, "wrong hash in error: %s", cerr.Hash)
}

func TestPutRejectsBeforeIO(t *testing.T) {
	db := setup(t)

	bad := []*Charge{
		mkcharge("", 2, "2021-06-15T12:00:00Z"),
		mkcharge("x", 0, "2021-06-15T12:00:00Z"),
		mkcharge("x", 2, "garbage"),
	}
	withState := mkcharge("x", 2, "2021-06-15T12:00:00Z")
	withState.State = "bogus"
	bad = append(bad, withState)

	for _, charge := range bad {
		_, err := db.PutCharge(charge)
		_, ok := err.(*ValidationError)
		tassert(t, ok, "expected ValidationError, got %T: %v", err, err)
	}

	// nothing touched the object dir
	entries, err := ioutil.ReadDir(filepath.Join(db.Dir, "objects"))
	tassert(t, err == nil, "readdir: %v", err)
	tassert(t, len(entries) == 0, "validation failure wrote %d entries", len(entries))
}

func TestNoStrayTempFiles(t *testing.T) {
	db := setup(t)

	charge := mkcharge("Fix bug", 2, "2021-06-15T12:00:00Z")
	hash, err := db.PutCharge(charge)
	tassert(t, err == nil, "put: %v", err)

	err = filepath.Walk(db.Dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		tassert(t, !strings.HasPrefix(fi.Name(), ".tmp-"), "stray temp file %s", path)
		return nil
	})
	tassert(t, err == nil, "walk: %v", err)
	_ = hash
}

func TestAtomicWriteFailureCleansUp(t *testing.T) {
	dir := t.TempDir()

	// a final path whose parent is a regular file makes the rename
	// fail after the temp file has been written
	blocker := filepath.Join(dir, "blocker")
	err := ioutil.WriteFile(blocker, []byte("x"), 0644)
	tassert(t, err == nil, "write blocker: %v", err)

	err = atomicWrite(dir, filepath.Join(blocker, "object"), []byte("payload"))
	tassert(t, err != nil, "expected rename failure")
	serr, ok := err.(*StorageError)
	tassert(t, ok, "expected StorageError, got %T: %v", err, err)
	tassert(t, serr.Err != nil, "cause swallowed")

	// no object, no leftover temp
	files, err := ioutil.ReadDir(dir)
	tassert(t, err == nil, "readdir: %v", err)
	tassert(t, len(files) == 1, "expected only blocker, found %d files", len(files))
	tassert(t, files[0].Name() == "blocker", "leftover %q", files[0].Name())
}

func TestObjectIsCompressed(t *testing.T) {
	db := setup(t)

	charge := mkcharge("Fix bug", 2, "2021-06-15T12:00:00Z")
	hash, err := db.PutCharge(charge)
	tassert(t, err == nil, "put: %v", err)

	buf, err := ioutil.ReadFile(db.objectPath(hash))
	tassert(t, err == nil, "read: %v", err)
	// gzip magic
	tassert(t, len(buf) > 2 && buf[0] == 0x1f && buf[1] == 0x8b, "object not gzip compressed")
	tassert(t, !strings.Contains(string(buf), "Fix bug"), "payload stored uncompressed")
}
