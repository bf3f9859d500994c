package tallybase

import (
	"io"

	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
	"github.com/vmihailenco/msgpack"
)

// ExportHistory writes a context's chain to w as a msgpack stream,
// newest first, one record per charge with the derived id included.
// The export is an inspection and backup surface; it never modifies
// the store.
func (db *Db) ExportHistory(w io.Writer, context string) (n int, err error) {
	defer Return(&err)

	walker, err := db.Walk(context)
	Ck(err)
	enc := msgpack.NewEncoder(w)
	for {
		charge, err := walker.Next()
		Ck(err)
		if charge == nil {
			break
		}
		err = enc.Encode(exportRecord{Id: charge.Id, Charge: charge})
		Ck(err)
		n++
	}
	return n, nil
}

// ImportHistory decodes a msgpack stream written by ExportHistory,
// re-validating every record and re-deriving its hash.  A record
// whose content no longer matches its recorded id fails the import.
func ImportHistory(r io.Reader) (charges []*Charge, err error) {
	dec := msgpack.NewDecoder(r)
	for {
		var rec exportRecord
		err = dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "decode archive")
		}
		if rec.Charge == nil {
			return nil, errors.New("archive record missing charge")
		}
		if err = rec.Charge.Validate(); err != nil {
			return nil, err
		}
		hash, err := rec.Charge.Hash()
		if err != nil {
			return nil, err
		}
		if hash != rec.Id {
			return nil, &CorruptError{Hash: rec.Id, Err: errors.New("archive content does not match id")}
		}
		rec.Charge.Id = hash
		charges = append(charges, rec.Charge)
	}
	return charges, nil
}

type exportRecord struct {
	Id     string  `msgpack:"id"`
	Charge *Charge `msgpack:"charge"`
}
