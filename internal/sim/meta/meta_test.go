package meta

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

type stub struct {
	name   string
	shifts Window
}

func (s stub) Name() string                                     { return s.name }
func (s stub) Shifts() Window                                   { return s.shifts }
func (s stub) Score(worker.Worker, tasks.Env) float64           { return 1 }
func (s stub) Instantiate(worker.Worker, tasks.Env) *tasks.Task { return nil }

func TestSelect_Boundaries(t *testing.T) {
	scores := []float64{30, 70}

	i, ok := Select(scores, 45)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	i, ok = Select(scores, 29.9)
	require.True(t, ok)
	assert.Equal(t, 0, i)

	i, _ = Select(scores, 30)
	assert.Equal(t, 0, i)
}

func TestSelect_SkipsNonPositive(t *testing.T) {
	i, ok := Select([]float64{0, -1, 5}, 0)
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = Select([]float64{0, 0}, 0)
	assert.False(t, ok)
}

func TestSelect_Distribution(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	scores := []float64{30, 70}
	const n = 200000
	hits := 0
	for k := 0; k < n; k++ {
		if i, _ := Select(scores, rng.Float64()*100); i == 0 {
			hits++
		}
	}
	assert.InDelta(t, 0.30, float64(hits)/n, 0.02)
}

func TestRegistry_EligibleKeepsOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(stub{"work", OnDuty}))
	require.NoError(t, r.Add(stub{"sleep", OffDuty}))
	require.NoError(t, r.Add(stub{"relax", AnyShift}))
	assert.True(t, errors.Is(r.Add(stub{"work", OnDuty}), ErrDuplicateMetaTask))

	names := func(list []MetaTask) []string {
		var out []string
		for _, mt := range list {
			out = append(out, mt.Name())
		}
		return out
	}
	assert.Equal(t, []string{"work", "relax"}, names(r.Eligible(OnDuty)))
	assert.Equal(t, []string{"sleep", "relax"}, names(r.Eligible(OffDuty)))
	assert.Equal(t, []string{"work", "sleep", "relax"}, names(r.Eligible(Unrestricted)))
}
