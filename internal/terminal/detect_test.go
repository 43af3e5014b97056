package terminal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInteractive(t *testing.T) {
	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })

	isTerminal = func(int) bool { return true }
	assert.True(t, IsInteractive())

	calls := 0
	isTerminal = func(int) bool {
		calls++
		return calls == 1
	}
	assert.False(t, IsInteractive())
}

func TestWidth(t *testing.T) {
	orig := getSize
	t.Cleanup(func() { getSize = orig })

	getSize = func(int) (int, int, error) { return 120, 40, nil }
	assert.Equal(t, 120, Width(80))

	getSize = func(int) (int, int, error) { return 0, 0, errors.New("not a terminal") }
	assert.Equal(t, 80, Width(80))
}
