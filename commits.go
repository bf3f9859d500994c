package tallybase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// CommitList is the ingestion-side shape of a charge's commit
// references: either a flat hash list or a map grouping hashes by
// repository.  The two forms are resolved once, at the boundary,
// instead of being threaded through as untyped data.  Exactly one of
// Hashes and ByRepo is set.
type CommitList struct {
	Hashes []string
	ByRepo map[string][]string
}

// ParseCommitList decodes raw JSON in either form.
func ParseCommitList(raw []byte) (list *CommitList, err error) {
	list = &CommitList{}
	if err = json.Unmarshal(raw, &list.Hashes); err == nil {
		return list, nil
	}
	list.Hashes = nil
	if err = json.Unmarshal(raw, &list.ByRepo); err == nil {
		return list, nil
	}
	return nil, &ValidationError{Field: "git_commits", Msg: "neither a hash list nor a repo map"}
}

// Flatten returns every hash in the list.  The grouped form is
// flattened in sorted repo order so the result is deterministic.
func (list *CommitList) Flatten() (hashes []string) {
	if list.ByRepo == nil {
		return list.Hashes
	}
	repos := make([]string, 0, len(list.ByRepo))
	for repo := range list.ByRepo {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	for _, repo := range repos {
		hashes = append(hashes, list.ByRepo[repo]...)
	}
	return hashes
}

// Validate screens every hash for shape.  Shape is all the core ever
// checks; resolving a commit against a repository belongs to a
// CommitValidator.
func (list *CommitList) Validate() (err error) {
	for _, hash := range list.Flatten() {
		if !ValidCommitHash(hash) {
			return &ValidationError{Field: "git_commits", Msg: fmt.Sprintf("bad commit hash %q", hash)}
		}
	}
	return nil
}

// CommitValidator pre-screens external commit references before a
// charge accepts them.
type CommitValidator interface {
	ValidRepo(repo string) bool
}

// RepoValidator answers ValidRepo by checking for a .git under the
// named path, through a TTL cache so repeated screening of the same
// repo list doesn't hit the disk every time.
type RepoValidator struct {
	cache *Cache
}

func NewRepoValidator(ttl *Cache) *RepoValidator {
	return &RepoValidator{cache: ttl}
}

func (v *RepoValidator) ValidRepo(repo string) bool {
	if val, hit := v.cache.Get(repo); hit {
		return val.(bool)
	}
	ok := canstat(filepath.Join(repo, ".git"))
	if !ok {
		// a bare repo has HEAD at the top level
		if fi, err := os.Stat(filepath.Join(repo, "HEAD")); err == nil && !fi.IsDir() {
			ok = true
		}
	}
	v.cache.Put(repo, ok)
	return ok
}
