package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdmission_RejectsWithinMinInterval(t *testing.T) {
	g := newAdmissionGate(50*time.Millisecond, 5000)

	assert.True(t, g.Admit("u1"))
	assert.False(t, g.Admit("u1"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, g.Admit("u1"))
}

func TestAdmission_UsersAreIndependent(t *testing.T) {
	g := newAdmissionGate(time.Hour, 5000)

	assert.True(t, g.Admit("u1"))
	assert.True(t, g.Admit("u2"))
	assert.False(t, g.Admit("u1"))
}

func TestAdmission_HighWaterClearResetsWindows(t *testing.T) {
	g := newAdmissionGate(time.Hour, 10)

	assert.True(t, g.Admit("victim"))
	assert.False(t, g.Admit("victim"))

	// Push the map past the high-water mark; the wholesale clear drops
	// every entry, including the victim's window.
	for i := 0; i < 11; i++ {
		g.Admit(fmt.Sprintf("u%d", i))
	}

	assert.True(t, g.Admit("victim"))
}
