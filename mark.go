package tallybase

import (
	"fmt"
	"strings"
	"time"
)

// AddCharge records new billable work in charge.Context: the charge
// is linked to the context's current head (if any), stored, and the
// ref advanced to it, so a context's whole lineage stays reachable
// from its head.  A zero Timestamp is stamped with the current
// instant and a zero State starts as unmarked.
func (db *Db) AddCharge(charge *Charge) (hash string, err error) {
	if charge.State == "" {
		charge.State = StateUnmarked
	}
	if charge.Timestamp == "" {
		charge.Timestamp = db.now().UTC().Format(time.RFC3339Nano)
	}
	if err = ValidateContextName(charge.Context); err != nil {
		return "", err
	}

	head, err := db.GetRef(charge.Context)
	if err != nil {
		return "", err
	}
	charge.Parent = head

	hash, err = db.PutCharge(charge)
	if err != nil {
		return "", err
	}
	if err = db.UpdateRef(charge.Context, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// Mark appends a new version of the charge at hash carrying the
// requested billing state, then advances the owning context's ref to
// the new version.  The original object is never touched; it stays
// reachable as the new version's parent, so every transition is
// auditable by walking the chain.  The new timestamp is the instant
// of the transition, not the original work time.
func (db *Db) Mark(hash, state string) (newhash string, err error) {
	if !ValidState(state) {
		return "", &ValidationError{
			Field: "state",
			Msg:   fmt.Sprintf("%q is not one of %s", state, strings.Join(States, ", ")),
		}
	}

	charge, err := db.GetCharge(hash)
	if err != nil {
		return "", err
	}
	if charge == nil {
		return "", &NotFoundError{Kind: "charge", Key: hash}
	}

	next := *charge
	next.Id = ""
	next.State = state
	next.Timestamp = db.now().UTC().Format(time.RFC3339Nano)
	next.Parent = hash

	// content differs from the original (parent if nothing else), so
	// this is necessarily a new object
	newhash, err = db.PutCharge(&next)
	if err != nil {
		return "", err
	}

	if err = db.UpdateRef(charge.Context, newhash); err != nil {
		return "", err
	}
	return newhash, nil
}
