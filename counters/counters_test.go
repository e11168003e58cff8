package counters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNoop_AddNeverPanics(t *testing.T) {
	r := NewNoop()
	r.SpfRuns.Add(1)
	r.Errors.Add(1)
	r.DispatchLatencyUs.Add(123)
	assert.Equal(t, "0", r.SpfRuns.String())
}

func TestNew_PublishesEveryField(t *testing.T) {
	r := New("counters_test")
	assert.NotNil(t, r.SpfRuns)
	assert.NotNil(t, r.RouteBuildRuns)
	assert.NotNil(t, r.Errors)
	assert.NotNil(t, r.DispatchLatencyUs)
	r.SpfRuns.Add(1)
}
