package station

import (
	"bytes"
	"errors"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStation_CapacityOne(t *testing.T) {
	s := New("lab-1", KindLab, 1, nil)

	c1, ok := s.TryClaim()
	require.True(t, ok)
	_, ok = s.TryClaim()
	require.False(t, ok)

	require.True(t, c1.Release())
	_, ok = s.TryClaim()
	require.True(t, ok)
	assert.Equal(t, 1, s.Occupants())
}

func TestStation_ReleaseUnclaimedWarns(t *testing.T) {
	var buf bytes.Buffer
	s := New("ws-1", KindWorkshop, 2, log.New(&buf, "", 0))
	s.Release()
	assert.Equal(t, 0, s.Occupants())
	assert.Contains(t, buf.String(), "unclaimed station ws-1")
}

func TestClaim_ReleasesOnce(t *testing.T) {
	s := New("bed-1", KindBed, 2, nil)
	a, _ := s.TryClaim()
	_, _ = s.TryClaim()
	require.Equal(t, 2, s.Occupants())

	assert.True(t, a.Release())
	assert.False(t, a.Release())
	assert.Equal(t, 1, s.Occupants())
}

func TestStation_ConcurrentClaimsNeverOverfill(t *testing.T) {
	s := New("airlock-1", KindAirlock, 3, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.TryClaim(); ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, won)
	assert.Equal(t, 3, s.Occupants())
}

func TestStation_BrokenRefusesClaims(t *testing.T) {
	s := New("ws-1", KindWorkshop, 1, nil)
	s.AddMalfunction("accident")
	_, ok := s.TryClaim()
	require.False(t, ok)
	s.Repair()
	_, ok = s.TryClaim()
	require.True(t, ok)
	assert.Equal(t, 1, s.Malfunctions())
}

func TestRegistry_ClaimAnyInIDOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(New("lab-b", KindLab, 1, nil)))
	require.NoError(t, r.Add(New("lab-a", KindLab, 1, nil)))
	err := r.Add(New("lab-a", KindLab, 1, nil))
	require.True(t, errors.Is(err, ErrDuplicateStation))

	c, ok := r.ClaimAny(KindLab)
	require.True(t, ok)
	assert.Equal(t, "lab-a", c.Station().ID())
	c2, ok := r.ClaimAny(KindLab)
	require.True(t, ok)
	assert.Equal(t, "lab-b", c2.Station().ID())
	_, ok = r.ClaimAny(KindLab)
	assert.False(t, ok)
	assert.False(t, r.HasAvailable(KindLab))
	assert.True(t, r.HasWorking(KindLab))
}
