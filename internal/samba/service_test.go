package samba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlara/diskmanager/internal/execx"
)

func TestRestartWithoutSystemctl(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{}
	s := newTestStore(t, smbFixture, run)
	s.Restart()
	assert.Empty(t, run.calls)
}

func TestRestartReloads(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{tools: map[string]bool{"systemctl": true}}
	s := newTestStore(t, smbFixture, run)
	s.Restart()

	// Reload succeeded for every unit, so no restart happens.
	require.Len(t, run.calls, 3)
	for _, c := range run.calls {
		assert.Equal(t, "systemctl", c[0])
		assert.Equal(t, "reload", c[1])
	}
}

func TestRestartFallsBackToRestart(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{
		tools:   map[string]bool{"systemctl": true},
		results: map[string]execx.Result{"systemctl": {ExitCode: 1}},
	}
	s := newTestStore(t, smbFixture, run)
	s.Restart()

	// Three failed reloads, then three restart attempts.
	require.Len(t, run.calls, 6)
	assert.Equal(t, "restart", run.calls[3][1])
}
