package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutineState_Transitions(t *testing.T) {
	var s routineState

	prev := s.set(flagStarted | flagTaskJustSet)
	assert.Equal(t, routineFlag(0), prev)
	assert.True(t, s.has(flagStarted))

	s.transition(flagCompleted, flagTaskJustSet)
	assert.Equal(t, flagStarted|flagCompleted, s.load())
	assert.Equal(t, "started|completed", s.load().String())
	assert.Equal(t, "idle", routineFlag(0).String())
}

// TestRoutineState_RejectsInvalidStates verifies impossible flag groups fail fast
func TestRoutineState_RejectsInvalidStates(t *testing.T) {
	var s routineState

	assert.Panics(t, func() { s.set(flagCompleted) }, "completed without started")
	assert.Panics(t, func() { s.set(flagPendingRestart) }, "pending restart without started")
	assert.Equal(t, routineFlag(0), s.load(), "a rejected transition leaves the state untouched")

	s.set(flagStarted | flagPendingRestart)
	assert.Panics(t, func() { s.unset(flagStarted) })
}

// TestRoutineState_ConcurrentFlags verifies foreign goroutines never lose each other's updates
func TestRoutineState_ConcurrentFlags(t *testing.T) {
	var s routineState
	s.set(flagStarted)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 1000 {
				s.set(flagPaused)
				s.unset(flagPaused)
			}
		}()
		go func() {
			defer wg.Done()
			for range 1000 {
				s.set(flagSyncPoint)
				s.unset(flagSyncPoint)
			}
		}()
	}
	s.set(flagExplicitlyStopped)
	wg.Wait()

	assert.True(t, s.has(flagStarted))
	assert.True(t, s.has(flagExplicitlyStopped))
}
