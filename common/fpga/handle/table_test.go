package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	tbl := newTable[string](4)
	for i := uint64(0); i < 10; i++ {
		tbl.insert(i, "v")
	}
	assert.Equal(t, 10, tbl.len())
	tbl.insert(3, "replaced")
	assert.Equal(t, 10, tbl.len())
	v, ok := tbl.lookup(3)
	assert.True(t, ok)
	assert.Equal(t, "replaced", v)

	for _, k := range []uint64{0, 4, 8} {
		_, ok := tbl.remove(k)
		assert.True(t, ok)
	}
	_, ok = tbl.remove(4)
	assert.False(t, ok)
	_, ok = tbl.lookup(8)
	assert.False(t, ok)
	assert.ElementsMatch(t, []uint64{1, 2, 3, 5, 6, 7, 9}, tbl.keys())
	assert.Equal(t, 7, tbl.len())
}
