package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeed(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		s := Seed()
		assert.Positive(t, s)
		seen[s] = true
	}
	assert.Greater(t, len(seen), 95)
}
