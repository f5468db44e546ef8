package procexec

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestExpecter(t *testing.T) {
	expecter := NewExpecter("Extracting  obb/main.obb   OK")
	assert.True(t, expecter.ExpectString("Extracting"))
	assert.True(t, expecter.SkipSpaces())
	assert.True(t, expecter.PeekString("obb/"))
	assert.Equal(t, "Extracting  ", expecter.Matched())
	assert.Equal(t, "obb/main.obb   OK", expecter.Rest())

	assert.False(t, expecter.ExpectString("data/"))
	assert.False(t, expecter.Valid())
	assert.Empty(t, expecter.Matched())
	assert.Empty(t, expecter.Rest())
	assert.False(t, expecter.SkipSpaces())
}
