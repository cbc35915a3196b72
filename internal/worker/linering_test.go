// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)
	assert.Empty(t, r.LastN(5))

	r.Add("a")
	r.Add("")
	r.Add("b")
	assert.Equal(t, []string{"a", "b"}, r.LastN(5))

	r.Add("c")
	r.Add("d")
	assert.Equal(t, []string{"b", "c", "d"}, r.LastN(10))
	assert.Equal(t, []string{"c", "d"}, r.LastN(2))
}
