package orchestrator_test

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/functionx/fx-bridge/orchestrator"
	"github.com/functionx/fx-bridge/testutil"
)

func TestDecide(t *testing.T) {
	const timeout = 150 * time.Second
	cases := []struct {
		name    string
		height  uint64
		head    uint64
		known   bool
		age     time.Duration
		depth   uint64
		verdict orchestrator.Verdict
	}{
		{"head unknown", 10, 20, false, time.Hour, 1, orchestrator.VerdictUnknown},
		{"at head", 10, 10, true, 0, 1, orchestrator.VerdictPending},
		{"one deep", 10, 11, true, 0, 1, orchestrator.VerdictConfirmed},
		{"zero depth", 10, 10, true, 0, 0, orchestrator.VerdictConfirmed},
		{"head behind event", 12, 10, true, 0, 1, orchestrator.VerdictPending},
		{"head behind event, timed out", 12, 10, true, timeout, 1, orchestrator.VerdictTimedOut},
		{"shallow, just before timeout", 10, 11, true, timeout - time.Nanosecond, 3, orchestrator.VerdictPending},
		{"shallow, timed out", 10, 11, true, timeout, 3, orchestrator.VerdictTimedOut},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.verdict, orchestrator.Decide(tc.height, tc.head, tc.known, tc.age, tc.depth, timeout))
		})
	}
}

func TestProperty_ConfirmationGating(t *testing.T) {
	properties := testutil.NewPropertyTester(t)
	const timeout = 150 * time.Second

	properties.Property("forwarded iff deep enough or older than the timeout", prop.ForAll(
		func(height, ahead, depth uint64, ageSeconds int64) bool {
			head := height + ahead
			age := time.Duration(ageSeconds) * time.Second
			ready := orchestrator.Decide(height, head, true, age, depth, timeout).Ready()
			return ready == (ahead >= depth || age >= timeout)
		},
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(0, 20),
		gen.UInt64Range(0, 12),
		gen.Int64Range(0, 300),
	))

	properties.Property("nothing is decided without a head", prop.ForAll(
		func(height, head uint64, ageSeconds int64) bool {
			age := time.Duration(ageSeconds) * time.Second
			return orchestrator.Decide(height, head, false, age, 1, timeout) == orchestrator.VerdictUnknown
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.Int64Range(0, 1000),
	))

	properties.TestingRun(t)
}

func TestTrackerAgesFromFirstSighting(t *testing.T) {
	clock := newFakeClock()
	tracker := orchestrator.NewTracker(2, time.Minute).WithClock(clock.Now)
	event := deposit(1, 100)

	require.Equal(t, orchestrator.VerdictPending, tracker.Check(event, 100, nil))
	clock.Advance(30 * time.Second)
	require.Equal(t, orchestrator.VerdictPending, tracker.Check(event, 101, nil))
	require.Equal(t, orchestrator.VerdictUnknown, tracker.Check(event, 0, errors.New("timeout")))
	clock.Advance(30 * time.Second)
	require.Equal(t, orchestrator.VerdictTimedOut, tracker.Check(event, 101, nil))
	require.Equal(t, orchestrator.VerdictConfirmed, tracker.Check(event, 102, nil))

	// forgetting restarts the clock
	tracker.Forget(1)
	require.Equal(t, orchestrator.VerdictPending, tracker.Check(event, 101, nil))
}
