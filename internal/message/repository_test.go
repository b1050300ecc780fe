// AngelaMos | 2026
// repository_test.go

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Both argument orders must address the same conversation row, because the
// unique pair index stores participants in sorted order.
func TestCanonicalPairIsOrderInsensitive(t *testing.T) {
	a, b := canonicalPair("7f9", "1c2")
	assert.Equal(t, "1c2", a)
	assert.Equal(t, "7f9", b)

	a2, b2 := canonicalPair("1c2", "7f9")
	assert.Equal(t, a, a2)
	assert.Equal(t, b, b2)
}
