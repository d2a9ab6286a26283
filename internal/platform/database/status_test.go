package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusKeepsRunIDOnlyWhileHealthy(t *testing.T) {
	s := NewStatus(nil)
	s.SetInitialRunID("aaa")
	assert.True(t, s.IsRedisHealthy())

	s.Update(false, "")
	assert.False(t, s.IsRedisHealthy())
	assert.Equal(t, "aaa", s.LastKnownRunID())

	s.Update(true, "bbb")
	assert.True(t, s.IsRedisHealthy())
	assert.Equal(t, "bbb", s.LastKnownRunID())
}

func TestNilStatusIsHealthy(t *testing.T) {
	var s *Status
	assert.True(t, s.IsRedisHealthy())
}
