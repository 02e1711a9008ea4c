package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("the framing inspection passed")
	b := Fingerprint("the framing inspection passed")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := Fingerprint("draft one")
	b := Fingerprint("draft two")
	assert.NotEqual(t, a, b)
}
