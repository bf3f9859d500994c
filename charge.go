package tallybase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	. "github.com/stevegt/goadapt"
)

// billing states
const (
	StateUnmarked    = "unmarked"
	StateCollectible = "collectible"
	StateBilled      = "billed"
	StatePaid        = "paid"
)

// States lists the legal billing states in lifecycle order.
var States = []string{StateUnmarked, StateCollectible, StateBilled, StatePaid}

var (
	commitRe  = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
	hashRe    = regexp.MustCompile(`^[0-9a-f]{64}$`)
	segmentRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// Charge is an immutable record of billable work.  Field order here is
// the canonical serialization order; changing it would change the hash
// of every stored charge.  Id is derived from the content at read time
// and is never part of the payload.
type Charge struct {
	Summary    string   `json:"summary" msgpack:"summary"`
	Units      float64  `json:"units" msgpack:"units"`
	Timestamp  string   `json:"timestamp" msgpack:"timestamp"`
	Context    string   `json:"context" msgpack:"context"`
	State      string   `json:"state" msgpack:"state"`
	GitCommits []string `json:"git_commits,omitempty" msgpack:"git_commits,omitempty"`
	Parent     string   `json:"parent,omitempty" msgpack:"parent,omitempty"`
	Id         string   `json:"-" msgpack:"-"`
}

func (charge Charge) New(summary string, units float64, context string) *Charge {
	charge.Summary = summary
	charge.Units = units
	charge.Context = context
	if charge.State == "" {
		charge.State = StateUnmarked
	}
	return &charge
}

// ValidState reports whether s is one of the four billing states.
func ValidState(s string) bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// ValidCommitHash reports whether s has the shape of a git commit
// hash: 7 to 40 lowercase hex characters.  We only screen the shape;
// resolving the commit against a repository is the validator's job
// (see commits.go).
func ValidCommitHash(s string) bool {
	return commitRe.MatchString(s)
}

// ValidHash reports whether s has the shape of a charge hash.
func ValidHash(s string) bool {
	return hashRe.MatchString(s)
}

// ValidateContextName checks a context name against the naming policy:
// at most 128 bytes, one to five segments separated by "/", each
// segment nonempty and starting with [a-z0-9].
func ValidateContextName(name string) (err error) {
	if name == "" {
		return &ValidationError{Field: "context", Msg: "must not be empty"}
	}
	if len(name) > 128 {
		return &ValidationError{Field: "context", Msg: "longer than 128 bytes"}
	}
	segments := strings.Split(name, "/")
	if len(segments) > 5 {
		return &ValidationError{Field: "context", Msg: "more than 5 segments"}
	}
	for _, seg := range segments {
		if !segmentRe.MatchString(seg) {
			return &ValidationError{Field: "context", Msg: fmt.Sprintf("bad segment %q", seg)}
		}
	}
	return nil
}

// Validate checks every invariant a stored charge must satisfy.  It
// runs before any I/O on the write path and again on the read path to
// defend against external corruption.
func (charge *Charge) Validate() (err error) {
	if strings.TrimSpace(charge.Summary) == "" {
		return &ValidationError{Field: "summary", Msg: "must not be empty"}
	}
	if math.IsNaN(charge.Units) || math.IsInf(charge.Units, 0) {
		return &ValidationError{Field: "units", Msg: "must be finite"}
	}
	if charge.Units <= 0 {
		return &ValidationError{Field: "units", Msg: "must be greater than zero"}
	}
	if !ValidState(charge.State) {
		return &ValidationError{
			Field: "state",
			Msg:   fmt.Sprintf("%q is not one of %s", charge.State, strings.Join(States, ", ")),
		}
	}
	if err = ValidateContextName(charge.Context); err != nil {
		return err
	}
	if _, perr := time.Parse(time.RFC3339Nano, charge.Timestamp); perr != nil {
		return &ValidationError{Field: "timestamp", Msg: fmt.Sprintf("%q is not a valid instant", charge.Timestamp)}
	}
	for _, commit := range charge.GitCommits {
		if !ValidCommitHash(commit) {
			return &ValidationError{Field: "git_commits", Msg: fmt.Sprintf("bad commit hash %q", commit)}
		}
	}
	if charge.Parent != "" && !ValidHash(charge.Parent) {
		return &ValidationError{Field: "parent", Msg: fmt.Sprintf("bad parent hash %q", charge.Parent)}
	}
	return nil
}

// Canonical returns the field-order-stable serialization the hash is
// computed over.  Id is excluded by its json tag.
func (charge *Charge) Canonical() (buf []byte, err error) {
	defer Return(&err)
	buf, err = json.Marshal(charge)
	Ck(err)
	return
}

// Hash returns the SHA-256 hex digest of the canonical serialization.
// The digest depends only on field values, never on construction
// order or process state.
func (charge *Charge) Hash() (hash string, err error) {
	defer Return(&err)
	buf, err := charge.Canonical()
	Ck(err)
	binhash := sha256.Sum256(buf)
	hash = hex.EncodeToString(binhash[:])
	return
}
