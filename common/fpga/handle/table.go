package handle

// Bucket counts of the per handle tables. MMIO regions are few, workspaces can number in the
// thousands.
const (
	mmioBuckets      = 4
	workspaceBuckets = 16384
)

type tableEntry[V any] struct {
	key   uint64
	value V
}

// table is a fixed size hash table keyed by small sequential integers. It is not safe for
// concurrent use, the owning handle's mutex guards it.
type table[V any] struct {
	buckets [][]tableEntry[V]
	count   int
}

func newTable[V any](buckets int) *table[V] {
	return &table[V]{buckets: make([][]tableEntry[V], buckets)}
}

func (t *table[V]) bucket(key uint64) int {
	return int(key % uint64(len(t.buckets)))
}

// insert adds or replaces the value stored under key.
func (t *table[V]) insert(key uint64, value V) {
	b := t.bucket(key)
	for i := range t.buckets[b] {
		if t.buckets[b][i].key == key {
			t.buckets[b][i].value = value
			return
		}
	}
	t.buckets[b] = append(t.buckets[b], tableEntry[V]{key: key, value: value})
	t.count++
}

func (t *table[V]) lookup(key uint64) (V, bool) {
	for _, e := range t.buckets[t.bucket(key)] {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (t *table[V]) remove(key uint64) (V, bool) {
	b := t.bucket(key)
	for i, e := range t.buckets[b] {
		if e.key == key {
			last := len(t.buckets[b]) - 1
			t.buckets[b][i] = t.buckets[b][last]
			t.buckets[b][last] = tableEntry[V]{}
			t.buckets[b] = t.buckets[b][:last]
			t.count--
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// keys returns a snapshot of all keys so callers can remove entries while iterating.
func (t *table[V]) keys() []uint64 {
	keys := make([]uint64, 0, t.count)
	for _, b := range t.buckets {
		for _, e := range b {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (t *table[V]) len() int {
	return t.count
}
