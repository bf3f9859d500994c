package tallybase

import (
	log "github.com/sirupsen/logrus"
)

// Walker is a lazy, finite, newest-first traversal of a context's
// chain.  Each Walk call starts fresh from the current head; a walker
// is not resumable once exhausted and not safe to share across
// concurrent mutation of the same ref.
type Walker struct {
	db   *Db
	next string
}

// Walk returns a walker positioned at context's head.
func (db *Db) Walk(context string) (w *Walker, err error) {
	head, err := db.GetRef(context)
	if err != nil {
		return nil, err
	}
	return &Walker{db: db, next: head}, nil
}

// Next returns the next charge in the chain, newest first, or nil
// when the chain is exhausted.  A missing or corrupt object -- head
// included -- silently truncates the chain rather than raising; a
// broken ancestor shouldn't make the readable prefix unreadable.
func (w *Walker) Next() (charge *Charge, err error) {
	if w.next == "" {
		return nil, nil
	}
	charge, err = w.db.GetCharge(w.next)
	if err != nil || charge == nil {
		if err != nil {
			log.Debugf("history truncated at %s: %v", w.next, err)
		}
		w.next = ""
		return nil, nil
	}
	w.next = charge.Parent
	return charge, nil
}

// History flattens a context's chain into a slice, newest first.
func (db *Db) History(context string) (charges []*Charge, err error) {
	w, err := db.Walk(context)
	if err != nil {
		return nil, err
	}
	for {
		charge, err := w.Next()
		if err != nil {
			return nil, err
		}
		if charge == nil {
			break
		}
		charges = append(charges, charge)
	}
	return charges, nil
}
