package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndIsIdempotent(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewSession("abc", "user-1", start)
	assert.Equal(t, StatusActive, s.Status)
	assert.Nil(t, s.EndedAt)

	assert.True(t, s.End(start.Add(time.Minute)))
	require.NotNil(t, s.EndedAt)
	first := *s.EndedAt

	assert.False(t, s.End(start.Add(time.Hour)))
	assert.Equal(t, first, *s.EndedAt)
	assert.True(t, s.IsEnded())
}

func TestCloneDetachesEndTime(t *testing.T) {
	s := NewSession("abc", "user-1", time.Now())
	s.End(time.Now())

	c := s.Clone()
	*c.EndedAt = c.EndedAt.Add(time.Hour)
	assert.NotEqual(t, *s.EndedAt, *c.EndedAt)
}
