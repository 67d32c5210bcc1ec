package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry, err := NewRegistry(jobA)
	require.NoError(t, err)
	require.NoError(t, registry.Register(jobB))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicatesAndBlanks(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "ledger-reconcile"})
	require.NoError(t, err)

	assert.Error(t, registry.Register(&stubJob{name: "ledger-reconcile"}))
	assert.Error(t, registry.Register(&stubJob{}))
	assert.Error(t, registry.Register(nil))
	assert.Len(t, registry.Jobs(), 1)
}
