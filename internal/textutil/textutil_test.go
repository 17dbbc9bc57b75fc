package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "fotó", Truncate("fotósíntesis", 4))
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "corto", Ellipsize("corto", 10))
	assert.Equal(t, "investigaci...", Ellipsize("investigación", 11))
	assert.Equal(t, "uno...", Ellipsize("uno dos", 4))
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "a b c", CollapseSpaces("  a\n\tb   c "))
}
