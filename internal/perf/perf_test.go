package perf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilCounterRecordsNothing(t *testing.T) {
	var c Nil
	c.Start(EventTick)
	c.Record(EventTick)
	c.Record(EventTick)
	assert.Zero(t, c.Count(EventTick))
}

func TestSimCounterOnlyRecordsWhileActive(t *testing.T) {
	s := NewSim()
	s.Record(EventTick) // inactive, dropped
	assert.Zero(t, s.Count(EventTick))

	s.Start(EventTick)
	s.Record(EventTick)
	s.Record(EventTick)
	assert.EqualValues(t, 2, s.Count(EventTick))

	s.Stop(EventTick)
	s.Record(EventTick)
	assert.EqualValues(t, 2, s.Count(EventTick))
}

func TestSimCounterTracksEventsIndependently(t *testing.T) {
	s := NewSim()
	s.Start(EventTick)
	s.Start(EventContextSwitch)
	s.Record(EventTick)
	s.Record(EventContextSwitch)
	s.Record(EventContextSwitch)
	assert.EqualValues(t, 1, s.Count(EventTick))
	assert.EqualValues(t, 2, s.Count(EventContextSwitch))
}
