package procexec

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestTailKeepsLastLinesPerStream(t *testing.T) {
	output := newTail(3, nil)
	output.write(Stdout, "al")
	output.write(Stderr, "err one\n")
	output.write(Stdout, "pha\nbeta\r\n")
	output.write(Stdout, "gamma")
	output.write(Stderr, "\b\berr two")
	output.flush()

	assert.Equal(t, []string{"beta", "gamma", "err two"}, output.snapshot())
}
