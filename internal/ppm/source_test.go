package ppm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeQuerier struct {
	value float64
	err   error
}

func (f fakeQuerier) Query() (float64, error) { return f.value, f.err }

func TestSource_DefaultsToZero(t *testing.T) {
	s := NewSource(fakeQuerier{err: errors.New("no daemon")})
	defer s.Close()
	assert.Equal(t, 0.0, s.Current())
}

func TestSource_AdoptsQueriedValue(t *testing.T) {
	s := &Source{querier: fakeQuerier{value: 1.25}, stop: make(chan struct{})}
	s.poll()
	assert.Equal(t, 1.25, s.Current())
}

func TestSource_RetainsPreviousOnFailure(t *testing.T) {
	s := &Source{querier: fakeQuerier{value: 2.5}, stop: make(chan struct{})}
	s.poll()
	s.querier = fakeQuerier{err: errors.New("transient")}
	s.poll()
	assert.Equal(t, 2.5, s.Current())
}
