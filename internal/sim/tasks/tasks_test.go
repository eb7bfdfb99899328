package tasks_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/tasks/taskstest"
	"colonysim.ai/internal/sim/worker"
)

const (
	phaseWork  tasks.Phase = "WORK"
	phaseRest  tasks.Phase = "REST"
	phaseLatch tasks.Phase = "LATCH"
)

type counter struct {
	worked   float64
	cleared  int
	leftover float64
	next     tasks.Phase
}

func workSpec() *tasks.Spec[counter] {
	return &tasks.Spec[counter]{
		Kind:   "WORK",
		Name:   "Working",
		Skills: []worker.Skill{worker.SkillMechanics},
		Phases: map[tasks.Phase]tasks.Handler[counter]{
			phaseWork: func(t *tasks.Task, s *counter, time float64) float64 {
				s.worked += time
				if s.next != "" {
					t.SetPhase(s.next)
				}
				return s.leftover
			},
			phaseLatch: func(t *tasks.Task, s *counter, time float64) float64 {
				return time
			},
		},
		Uninterruptible: []tasks.Phase{phaseLatch},
		ClearDown: func(t *tasks.Task, s *counter) {
			s.cleared++
		},
	}
}

func TestExecute_DurationBudgetEndsInCall(t *testing.T) {
	env := taskstest.NewEnv(1)
	st := &counter{}
	task := tasks.New(workSpec(), env, taskstest.Person("C1"), st, phaseWork)
	task.SetDuration(100)

	left, err := task.Execute(95)
	require.NoError(t, err)
	require.Equal(t, 0.0, left)
	require.False(t, task.Done())

	left, err = task.Execute(10)
	require.NoError(t, err)
	assert.True(t, task.Done())
	assert.InDelta(t, 5, left, 1e-9)
	assert.InDelta(t, 100, st.worked, 1e-9)
	assert.InDelta(t, 100, task.TimeCompleted(), 1e-9)
}

func TestExecute_TimeConservation(t *testing.T) {
	env := taskstest.NewEnv(1)
	for _, give := range []float64{0.5, 1, 7.25, 100} {
		task := tasks.New(workSpec(), env, taskstest.Person("C1"), &counter{}, phaseWork)
		task.SetDuration(3)
		left, err := task.Execute(give)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, left, 0.0)
		assert.LessOrEqual(t, left, give)
	}
}

func TestExecute_ClampsOutOfRangeLeftover(t *testing.T) {
	env := taskstest.NewEnv(1)
	st := &counter{leftover: 50}
	task := tasks.New(workSpec(), env, taskstest.Person("C1"), st, phaseWork)

	left, err := task.Execute(10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, left)
	assert.Contains(t, env.Log.String(), "returned leftover")

	st.leftover = -3
	left, err = task.Execute(10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, left)
}

func TestEnd_RunsClearDownOnceAndStaysDone(t *testing.T) {
	env := taskstest.NewEnv(1)
	st := &counter{}
	task := tasks.New(workSpec(), env, taskstest.Person("C1"), st, phaseWork)

	task.End()
	task.End()
	assert.True(t, task.Done())
	assert.Equal(t, 1, st.cleared)
	assert.Equal(t, tasks.Phase(""), task.Phase())

	left, err := task.Execute(4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, left)
	assert.True(t, task.Done())

	task.SetPhase(phaseWork)
	assert.Equal(t, tasks.Phase(""), task.Phase())
}

func TestEnd_ReleasesClaimsOnAbnormalEnd(t *testing.T) {
	env := taskstest.NewEnv(1)
	lab := station.New("lab-1", station.KindLab, 1, env.Logger())
	require.NoError(t, env.Reg.Add(lab))

	task := tasks.New(workSpec(), env, taskstest.Person("C1"), &counter{}, phaseWork)
	_, ok := task.ClaimKind(station.KindLab)
	require.True(t, ok)
	require.Equal(t, 1, lab.Occupants())

	task.SetPhase("NOT_REGISTERED")
	_, err := task.Execute(1)
	require.Error(t, err)
	assert.Equal(t, 0, lab.Occupants())
}

func TestExecute_UnknownPhaseIsConfigError(t *testing.T) {
	env := taskstest.NewEnv(1)
	st := &counter{next: "MISSING", leftover: 5}
	task := tasks.New(workSpec(), env, taskstest.Person("C1"), st, phaseWork)

	_, err := task.Execute(10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tasks.ErrUnknownPhase))
	var pe *tasks.PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, tasks.Phase("MISSING"), pe.Phase)
	assert.True(t, task.Done())
	assert.Contains(t, env.Log.String(), "FATAL config")
}

func TestExecute_SubTaskRunsFirstAndPassesLeftover(t *testing.T) {
	env := taskstest.NewEnv(1)
	env.WalkTime = 4
	w := taskstest.Person("C1")
	st := &counter{}
	parent := tasks.New(workSpec(), env, w, st, phaseWork)

	walk, err := env.WalkTask(w, worker.Spot{X: 3, Loc: worker.Inside})
	require.NoError(t, err)
	require.NoError(t, parent.AddSubTask(walk))

	other, _ := env.WalkTask(w, worker.Spot{})
	assert.True(t, errors.Is(parent.AddSubTask(other), tasks.ErrSubTaskActive))

	left, err := parent.Execute(10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, left)
	assert.True(t, walk.Done())
	assert.Nil(t, parent.SubTask())
	assert.InDelta(t, 6, st.worked, 1e-9)
	assert.Equal(t, 3.0, w.Spot().X)
}

func TestExecute_SuperviseRunsBeforeSubTask(t *testing.T) {
	env := taskstest.NewEnv(1)
	env.WalkTime = 50
	w := taskstest.Person("C1")
	sp := workSpec()
	sp.Supervise = func(t *tasks.Task, s *counter) {
		if s.worked == 0 && t.SubTask() != nil && w.Stress() > 0 {
			t.EndSubTask()
			t.SetPhase(phaseRest)
		}
	}
	sp.Phases[phaseRest] = func(t *tasks.Task, s *counter, time float64) float64 {
		t.End()
		return time
	}
	st := &counter{}
	parent := tasks.New(sp, env, w, st, phaseWork)
	walk, err := env.WalkTask(w, worker.Spot{X: 3, Loc: worker.Inside})
	require.NoError(t, err)
	require.NoError(t, parent.AddSubTask(walk))

	_, err = parent.Execute(5)
	require.NoError(t, err)
	assert.False(t, walk.Done())

	w.SetStress(10)
	left, err := parent.Execute(5)
	require.NoError(t, err)
	assert.True(t, walk.Done())
	assert.True(t, parent.Done())
	assert.Equal(t, 5.0, left)
	assert.Zero(t, st.worked)
	assert.Zero(t, w.Spot().X)
}

func TestEnd_EndsSubTask(t *testing.T) {
	env := taskstest.NewEnv(1)
	w := taskstest.Person("C1")
	parent := tasks.New(workSpec(), env, w, &counter{}, phaseWork)
	walk, _ := env.WalkTask(w, worker.Spot{X: 1})
	require.NoError(t, parent.AddSubTask(walk))

	parent.End()
	assert.True(t, walk.Done())
}

func TestExecute_EffortDrivenIncapacitatedEnds(t *testing.T) {
	env := taskstest.NewEnv(1)
	sp := workSpec()
	sp.EffortDriven = true
	w := taskstest.Person("C1")
	w.SetHealth(0)

	task := tasks.New(sp, env, w, &counter{}, phaseWork)
	_, err := task.Execute(0)
	require.NoError(t, err)
	assert.True(t, task.Done())
}

func TestExecute_AppliesStress(t *testing.T) {
	env := taskstest.NewEnv(1)
	sp := workSpec()
	sp.StressPerTime = 0.5
	w := taskstest.Person("C1")

	task := tasks.New(sp, env, w, &counter{}, phaseWork)
	_, err := task.Execute(10)
	require.NoError(t, err)
	assert.InDelta(t, 5, w.Stress(), 1e-9)
}

func TestExecute_YieldingPhaseStopsWithoutProgress(t *testing.T) {
	env := taskstest.NewEnv(1)
	task := tasks.New(workSpec(), env, taskstest.Person("C1"), &counter{}, phaseLatch)
	left, err := task.Execute(3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, left)
	assert.False(t, task.Done())
}

func TestInterruptible_ChecksWholeStack(t *testing.T) {
	env := taskstest.NewEnv(1)
	w := taskstest.Person("C1")
	parent := tasks.New(workSpec(), env, w, &counter{}, phaseWork)
	assert.True(t, parent.Interruptible())

	child := tasks.New(workSpec(), env, w, &counter{}, phaseLatch)
	require.NoError(t, parent.AddSubTask(child))
	assert.False(t, parent.Interruptible())
	assert.Same(t, child, parent.Active())
}

func TestSkillModifier(t *testing.T) {
	cases := map[int]float64{0: 4, 1: 3, 3: 1, 4: 0.5, 5: 1.0 / 3}
	for skill, want := range cases {
		assert.InDelta(t, want, tasks.SkillModifier(skill), 1e-12, "skill %d", skill)
	}
}

func TestCheckForAccident_CertainHitCreatesMalfunction(t *testing.T) {
	env := taskstest.NewEnv(1)
	w := taskstest.Person("C1")
	task := tasks.New(workSpec(), env, w, &counter{}, phaseWork)
	ws := station.New("ws-1", station.KindWorkshop, 1, env.Logger())

	assert.True(t, task.CheckForAccident(ws, 100, 1, 3))
	assert.True(t, ws.Broken())
	require.Len(t, env.Malfunctions, 1)
	assert.Equal(t, "ws-1", env.Malfunctions[0].Entity)

	assert.False(t, task.CheckForAccident(ws, 0, 1, 3))
}

func TestAddExperience_UsesAptitude(t *testing.T) {
	env := taskstest.NewEnv(1)
	w := taskstest.Person("C1")
	w.SetAttribute(worker.AttrExperienceAptitude, 100)
	task := tasks.New(workSpec(), env, w, &counter{}, phaseWork)

	task.AddExperience(10, 10)
	assert.InDelta(t, 1.5, w.Experience(worker.SkillMechanics), 1e-9)
}

func TestRegister(t *testing.T) {
	r := tasks.NewRegistry()
	require.NoError(t, tasks.Register(r, workSpec()))
	assert.True(t, errors.Is(tasks.Register(r, workSpec()), tasks.ErrDuplicateKind))

	bad := workSpec()
	bad.Kind = "BAD"
	bad.Uninterruptible = []tasks.Phase{phaseRest}
	assert.True(t, errors.Is(tasks.Register(r, bad), tasks.ErrInvalidSpec))

	info, ok := r.Lookup("WORK")
	require.True(t, ok)
	assert.Equal(t, []tasks.Phase{phaseLatch, phaseWork}, info.Phases)
}
