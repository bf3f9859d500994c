/*

Tallybase is a content-addressable deduplicating database for billable
work records ("charges").  Every charge is stored under the SHA-256
hash of its canonical serialization, git-loose-object style, and each
named context keeps a mutable head pointer at its most recent charge.
State changes never mutate an object in place; they append a new
object linked to its predecessor, so a context's full billing history
is always reachable by walking parent links from the head.

Vocabulary:

- charge: an immutable record of billable work; deduplication atom;
	stored as a gzip-compressed JSON file
- hash: SHA-256 hex digest of a charge's canonical serialization;
	the charge's identity, never stored inside the payload
- shard: two-character hexadecimal segment of a hash, used as a
	subdirectory name to keep directory sizes small
- context: human-readable name of a lineage of charges; validated
	against a charset/length/segment policy; "default" always exists
- ref: the mutable pointer from a context name to its head hash;
	an empty ref means the context exists but has no charges yet
- head: the most recent charge in a context
- mark: the operation that appends a new charge version carrying an
	updated billing state and advances the context's ref
- chain: the sequence of charges reachable by following parent links
	from a head, newest first

*/
package tallybase
