package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress(&out, "Evaluating")

	p.Finish() // no bar yet

	p.Update(1, 4)
	p.Update(3, 4)
	assert.Equal(t, 4, p.bar.GetMax())

	// A changed total replaces the bar.
	p.Update(2, 6)
	assert.Equal(t, 6, p.bar.GetMax())

	p.Update(6, 6)
	p.Finish()
	assert.Contains(t, out.String(), "Evaluating")
}
