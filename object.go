package tallybase

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// objectPath splits a hash into a two-character shard directory and a
// 62-character filename under objects/, bounding directory fan-out.
func (db *Db) objectPath(hash string) string {
	return filepath.Join(db.Dir, "objects", hash[:2], hash[2:])
}

// PutCharge validates the charge, serializes it canonically, and
// stores it under the SHA-256 hash of the serialization.  Storing the
// same content twice is a no-op that returns the existing hash, so
// two concurrent writers of identical content converge on the same
// file.  The write is temp-file-then-rename: a reader either sees the
// whole object or no object.
func (db *Db) PutCharge(charge *Charge) (hash string, err error) {
	// fail fast, before any I/O
	if err = charge.Validate(); err != nil {
		return "", err
	}

	buf, err := charge.Canonical()
	if err != nil {
		return "", err
	}
	binhash := sha256.Sum256(buf)
	hash = hex.EncodeToString(binhash[:])

	abspath := db.objectPath(hash)
	if canstat(abspath) {
		// already stored; content addressing makes this exact
		log.Debugf("dedup hit %s", hash)
		return hash, nil
	}

	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	if _, werr := zw.Write(buf); werr != nil {
		return "", &StorageError{Op: "compress", Path: abspath, Err: werr}
	}
	if werr := zw.Close(); werr != nil {
		return "", &StorageError{Op: "compress", Path: abspath, Err: werr}
	}

	shard, _ := filepath.Split(abspath)
	if err = mkdir(shard); err != nil {
		return "", err
	}
	if err = atomicWrite(shard, abspath, zbuf.Bytes()); err != nil {
		return "", err
	}

	log.Debugf("stored %s", hash)
	return hash, nil
}

// GetCharge loads the charge stored under hash.  A missing object is
// a nil charge, not an error.  An object that exists but fails to
// decompress, parse, or re-validate is a CorruptError, so callers can
// tell "never existed" from "exists but unreadable".
func (db *Db) GetCharge(hash string) (charge *Charge, err error) {
	if !ValidHash(hash) {
		return nil, &ValidationError{Field: "hash", Msg: "must be 64 lowercase hex characters"}
	}

	abspath := db.objectPath(hash)
	zbuf, err := ioutil.ReadFile(abspath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Path: abspath, Err: err}
	}

	zr, err := gzip.NewReader(bytes.NewReader(zbuf))
	if err != nil {
		return nil, &CorruptError{Hash: hash, Err: err}
	}
	buf, err := ioutil.ReadAll(zr)
	if err != nil {
		return nil, &CorruptError{Hash: hash, Err: err}
	}
	if err = zr.Close(); err != nil {
		return nil, &CorruptError{Hash: hash, Err: err}
	}

	charge = &Charge{}
	if err = json.Unmarshal(buf, charge); err != nil {
		return nil, &CorruptError{Hash: hash, Err: err}
	}
	if err = charge.Validate(); err != nil {
		return nil, &CorruptError{Hash: hash, Err: err}
	}
	charge.Id = hash
	return charge, nil
}

// atomicWrite writes buf to a uniquely-named temp file in dir and
// renames it onto final.  On any failure the temp file is best-effort
// removed; an already-gone temp is fine, any other cleanup failure is
// logged and not propagated.
func atomicWrite(dir, final string, buf []byte) (err error) {
	fh, err := ioutil.TempFile(dir, ".tmp-*")
	if err != nil {
		return &StorageError{Op: "tempfile", Path: dir, Err: err}
	}
	tmp := fh.Name()

	cleanup := func() {
		rmerr := os.Remove(tmp)
		if rmerr != nil && !os.IsNotExist(rmerr) {
			log.Warnf("cleanup %s: %v", tmp, rmerr)
		}
	}

	if _, err = fh.Write(buf); err != nil {
		fh.Close()
		cleanup()
		return &StorageError{Op: "write", Path: tmp, Err: err}
	}
	if err = fh.Close(); err != nil {
		cleanup()
		return &StorageError{Op: "close", Path: tmp, Err: err}
	}
	if err = os.Rename(tmp, final); err != nil {
		cleanup()
		return &StorageError{Op: "rename", Path: final, Err: err}
	}
	return nil
}
