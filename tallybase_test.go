package tallybase

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"testing"
	"time"

	. "github.com/stevegt/goadapt"
)

const testDbDirPrefix = "tallybase"

// fixed instant used wherever a test wants a deterministic clock
var testNow = time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)

// test boolean condition
func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

func pretty(input interface{}) string {
	buf, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Sprintf("%#v", input)
	}
	return string(buf)
}

func deepEqual(a, b interface{}) bool {
	return pretty(a) == pretty(b)
}

func mkcharge(summary string, units float64, ts string) *Charge {
	charge := Charge{}.New(summary, units, DefaultContext)
	charge.Timestamp = ts
	return charge
}

func setup(t *testing.T) (db *Db) {
	var err error
	var dir string

	debug := os.Getenv("DEBUG")
	if debug == "1" {
		dir, err = ioutil.TempDir("", testDbDirPrefix)
		Ck(err)
		fmt.Println(dir)
		// no cleanup
	} else {
		dir = t.TempDir()
		// automatically cleaned up
	}

	db, err = Db{Dir: dir}.Create()
	Ck(err)
	db.Now = func() time.Time { return testNow }

	reopened, err := Open(dir)
	Ck(err)
	tassert(t, reopened != nil, "db is nil")

	return db
}

func TestCreateRefusesNonEmpty(t *testing.T) {
	dir := t.TempDir()
	err := ioutil.WriteFile(dir+"/junk", []byte("x"), 0644)
	Ck(err)
	_, err = Db{Dir: dir}.Create()
	tassert(t, err != nil, "expected error creating over non-empty dir")
	_, ok := err.(*ExistsError)
	tassert(t, ok, "expected ExistsError, got %T: %v", err, err)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(t.TempDir() + "/nope")
	tassert(t, err != nil, "expected error opening missing db")
	_, ok := err.(*NotDbError)
	tassert(t, ok, "expected NotDbError, got %T: %v", err, err)
}

func TestDefaultDir(t *testing.T) {
	old := os.Getenv(EnvDir)
	defer os.Setenv(EnvDir, old)

	err := os.Setenv(EnvDir, "/tmp/somewhere")
	Ck(err)
	tassert(t, DefaultDir() == "/tmp/somewhere", "env override ignored: %s", DefaultDir())

	err = os.Setenv(EnvDir, "")
	Ck(err)
	dir := DefaultDir()
	tassert(t, dir != "", "empty default dir")
}
