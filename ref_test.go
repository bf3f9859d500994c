package tallybase

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
)

func TestRefUpdateGet(t *testing.T) {
	db := setup(t)

	hash := strings.Repeat("ab", 32)
	err := db.UpdateRef("client-a", hash)
	tassert(t, err == nil, "update: %v", err)

	got, err := db.GetRef("client-a")
	tassert(t, err == nil, "get: %v", err)
	tassert(t, got == hash, "expected %q got %q", hash, got)

	// overwrite
	hash2 := strings.Repeat("cd", 32)
	err = db.UpdateRef("client-a", hash2)
	tassert(t, err == nil, "update: %v", err)
	got, err = db.GetRef("client-a")
	tassert(t, err == nil, "get: %v", err)
	tassert(t, got == hash2, "expected %q got %q", hash2, got)
}

func TestRefEmptySentinel(t *testing.T) {
	db := setup(t)

	// empty hash is legal: context exists, no charges yet
	err := db.UpdateRef("client-a", "")
	tassert(t, err == nil, "update: %v", err)

	ok, err := db.ContextExists("client-a")
	tassert(t, err == nil, "exists: %v", err)
	tassert(t, ok, "sentinel ref does not register context")

	head, err := db.GetRef("client-a")
	tassert(t, err == nil, "get: %v", err)
	tassert(t, head == "", "expected empty head, got %q", head)
}

func TestRefMissingIsNoHead(t *testing.T) {
	db := setup(t)

	head, err := db.GetRef("never-written")
	tassert(t, err == nil, "get: %v", err)
	tassert(t, head == "", "expected empty head, got %q", head)

	// whitespace-only ref contents mean no head too
	err = ioutil.WriteFile(filepath.Join(db.Dir, "refs", "padded"), []byte("  \n"), 0644)
	tassert(t, err == nil, "write: %v", err)
	head, err = db.GetRef("padded")
	tassert(t, err == nil, "get: %v", err)
	tassert(t, head == "", "expected empty head, got %q", head)
}

func TestRefRejectsBadHash(t *testing.T) {
	db := setup(t)

	err := db.UpdateRef("client-a", "nothex")
	_, ok := err.(*ValidationError)
	tassert(t, ok, "expected ValidationError, got %T: %v", err, err)

	err = db.UpdateRef("Bad Name!", strings.Repeat("ab", 32))
	_, ok = err.(*ValidationError)
	tassert(t, ok, "expected ValidationError, got %T: %v", err, err)
}

func TestRefTokenReplacesEverySeparator(t *testing.T) {
	// every separator, not just the first; replacing only the first
	// would leave "a/b/c" writing into a nested directory
	tassert(t, refToken("a/b/c") == "a_b_c", "got %q", refToken("a/b/c"))
	tassert(t, refToken("a/b") == "a_b", "got %q", refToken("a/b"))
	tassert(t, refToken("plain") == "plain", "got %q", refToken("plain"))
}

func TestRefMultiSegmentFlat(t *testing.T) {
	db := setup(t)

	hash := strings.Repeat("ab", 32)
	err := db.UpdateRef("a/b/c", hash)
	tassert(t, err == nil, "update: %v", err)

	// the ref landed as a flat file directly under refs/
	buf, err := ioutil.ReadFile(filepath.Join(db.Dir, "refs", "a_b_c"))
	tassert(t, err == nil, "read: %v", err)
	tassert(t, strings.TrimSpace(string(buf)) == hash, "ref content %q", buf)

	// "a/b" must not collide with "a/b/c"
	hash2 := strings.Repeat("cd", 32)
	err = db.UpdateRef("a/b", hash2)
	tassert(t, err == nil, "update: %v", err)
	got, err := db.GetRef("a/b/c")
	tassert(t, err == nil, "get: %v", err)
	tassert(t, got == hash, "a/b clobbered a/b/c: %q", got)
}

func TestListRefs(t *testing.T) {
	db := setup(t)

	names, err := db.ListRefs()
	tassert(t, err == nil, "list: %v", err)
	tassert(t, len(names) == 0, "fresh db has refs: %v", names)

	hash := strings.Repeat("ab", 32)
	for _, context := range []string{"beta", "alpha", "a/b"} {
		err = db.UpdateRef(context, hash)
		tassert(t, err == nil, "update %s: %v", context, err)
	}
	names, err = db.ListRefs()
	tassert(t, err == nil, "list: %v", err)
	tassert(t, len(names) == 3, "expected 3 refs, got %v", names)
}

func TestContextExistsDefault(t *testing.T) {
	db := setup(t)

	// default exists with no ref file
	ok, err := db.ContextExists(DefaultContext)
	tassert(t, err == nil, "exists: %v", err)
	tassert(t, ok, "default context missing")

	ok, err = db.ContextExists("other")
	tassert(t, err == nil, "exists: %v", err)
	tassert(t, !ok, "unwritten context exists")
}
