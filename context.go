package tallybase

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// DefaultContext always exists, ref file or not.
const DefaultContext = "default"

// ContextInfo summarizes one context's chain.
type ContextInfo struct {
	Name    string
	Charges int     // chain length, state transitions included
	Head    *Charge // most recent version, nil for an empty context
}

// Registry enumerates contexts and answers existence queries through
// a TTL cache.  An optional fsnotify watcher on the refs directory
// purges the cache whenever another writer touches a ref, the same
// way pit watches its db dir.
type Registry struct {
	Db      *Db
	exists  *Cache
	watcher *fsnotify.Watcher
	Events  chan fsnotify.Event
	done    chan struct{}
}

// NewRegistry wraps db.  ttl bounds how stale an existence answer can
// be; now is the cache's clock.
func NewRegistry(db *Db, ttl time.Duration, now Clock) *Registry {
	return &Registry{
		Db:     db,
		exists: NewCache(ttl, now),
	}
}

// Watch starts an fsnotify watcher on the refs directory.  Any event
// there purges the existence cache and is forwarded best-effort on
// Events, dropped if nobody is listening.  Close releases the watcher.
func (r *Registry) Watch() (err error) {
	defer Return(&err)
	r.watcher, err = fsnotify.NewWatcher()
	Ck(err)
	err = r.watcher.Add(filepath.Join(r.Db.Dir, "refs"))
	Ck(err)
	r.Events = make(chan fsnotify.Event, 16)
	r.done = make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-r.watcher.Events:
				if !ok {
					return
				}
				log.Debugf("refs event %v", event)
				r.exists.Purge()
				select {
				case r.Events <- event:
				default:
				}
			case <-r.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one was started.
func (r *Registry) Close() {
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

// ContextExists answers through the cache; misses fall through to the
// ref directory.
func (r *Registry) ContextExists(context string) (ok bool, err error) {
	if val, hit := r.exists.Get(context); hit {
		return val.(bool), nil
	}
	ok, err = r.Db.ContextExists(context)
	if err != nil {
		return false, err
	}
	r.exists.Put(context, ok)
	return ok, nil
}

// ListContexts returns the union of {"default"} and every context
// with a ref file, sorted.
func (db *Db) ListContexts() (names []string, err error) {
	refs, err := db.ListRefs()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{DefaultContext: true}
	for _, name := range refs {
		seen[name] = true
	}
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ContextInfo derives a context's summary from its chain.
func (db *Db) ContextInfo(context string) (info *ContextInfo, err error) {
	ok, err := db.ContextExists(context)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{Kind: "context", Key: context}
	}
	charges, err := db.History(context)
	if err != nil {
		return nil, err
	}
	info = &ContextInfo{Name: context, Charges: len(charges)}
	if len(charges) > 0 {
		info.Head = charges[0]
	}
	return info, nil
}

// CreateContext registers an empty context by writing the empty
// sentinel ref.
func (db *Db) CreateContext(context string) (err error) {
	return db.UpdateRef(context, "")
}

// CreateContextIfMissing writes the sentinel only when no ref exists,
// so switching to an existing context never clobbers its head.
func (db *Db) CreateContextIfMissing(context string) (err error) {
	ok, err := db.ContextExists(context)
	if err != nil {
		return err
	}
	if ok && canstat(db.refPath(context)) {
		return nil
	}
	if context == DefaultContext {
		// exists implicitly; no ref needed until a charge lands
		return nil
	}
	return db.UpdateRef(context, "")
}

// DeleteContext always fails.  Refs are never deleted; pretending to
// delete one would orphan its chain silently.  Documented limitation,
// not a no-op.
func (db *Db) DeleteContext(context string) (err error) {
	return ErrNotImplemented
}

// CurrentContext returns the active context name from the
// current-context file.  A missing or empty file means "default".
func (db *Db) CurrentContext() (context string, err error) {
	buf, err := ioutil.ReadFile(filepath.Join(db.Dir, "current-context"))
	if os.IsNotExist(err) {
		return DefaultContext, nil
	}
	if err != nil {
		return "", &StorageError{Op: "read", Path: "current-context", Err: err}
	}
	context = strings.TrimSpace(string(buf))
	if context == "" {
		return DefaultContext, nil
	}
	return context, nil
}

// SetCurrentContext switches the active context, atomically.
func (db *Db) SetCurrentContext(context string) (err error) {
	if err = ValidateContextName(context); err != nil {
		return err
	}
	abspath := filepath.Join(db.Dir, "current-context")
	if err = renameio.WriteFile(abspath, []byte(context+"\n"), 0644); err != nil {
		return &StorageError{Op: "write", Path: abspath, Err: err}
	}
	return nil
}
