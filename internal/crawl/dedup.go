package crawl

// DedupSet is the run-scoped set of natural keys already accepted. It avoids
// wasted store round-trips within one run; the paper store remains the source
// of truth for cross-run duplicates. The set is owned exclusively by the
// active run's control flow and needs no locking.
type DedupSet struct {
	seen map[string]struct{}
}

// NewDedupSet creates an empty dedup set.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[string]struct{})}
}

// Contains reports whether the key was already accepted this run.
func (d *DedupSet) Contains(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Add records an accepted key.
func (d *DedupSet) Add(key string) {
	d.seen[key] = struct{}{}
}

// Len returns the number of accepted keys.
func (d *DedupSet) Len() int {
	return len(d.seen)
}
