package sched

import (
	"testing"

	"github.com/dionysus-os/kernel/internal/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArmQuantumMatchesNiceFormula(t *testing.T) {
	k, _, _ := newTestKernel(t)
	task := k.Current()
	task.Nice = 5
	k.ArmQuantum(task)
	assert.EqualValues(t, Quantum(5), task.TicksLeft())
}

func TestConsumeTickExhaustsAndRecordsOnPerf(t *testing.T) {
	k, _, _ := newTestKernel(t)
	sim := perf.NewSim()
	sim.Start(perf.EventTick)
	k.Perf = sim

	task := k.Current()
	task.Nice = 0
	k.ArmQuantum(task)
	total := Quantum(0)

	var exhausted bool
	for i := int32(0); i < total; i++ {
		exhausted = k.ConsumeTick(task)
	}
	require.True(t, exhausted)
	assert.EqualValues(t, total, sim.Count(perf.EventTick))
}

func TestForkRecordsPerfEvent(t *testing.T) {
	k, _, _ := newTestKernel(t)
	sim := perf.NewSim()
	sim.Start(perf.EventForkCompleted)
	k.Perf = sim

	_, errno := k.Fork(k.Current(), nil, nil)
	require.Zero(t, errno)
	assert.EqualValues(t, 1, sim.Count(perf.EventForkCompleted))
}
