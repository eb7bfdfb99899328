package scheduler

import "colonysim.ai/internal/sim/tasks"

type Event string

const (
	EventStart     Event = "START"
	EventProgress  Event = "PROGRESS"
	EventPhase     Event = "PHASE"
	EventEnd       Event = "END"
	EventPreempted Event = "PREEMPTED"
)

// Activity is one entry of a worker's task history.
type Activity struct {
	Time        float64 `json:"time"`
	WorkerID    string  `json:"worker_id"`
	Event       Event   `json:"event"`
	TaskID      string  `json:"task_id"`
	Task        string  `json:"task"`
	Kind        string  `json:"kind"`
	Phase       string  `json:"phase,omitempty"`
	Description string  `json:"description,omitempty"`
}

type activityKey struct {
	taskID      string
	phase       tasks.Phase
	description string
}

// record appends an activity when something visible changed. Progress
// events that change nothing are dropped.
func (s *Scheduler) record(t *tasks.Task, ev Event) {
	active := t.Active()
	key := activityKey{taskID: active.ID(), phase: active.Phase(), description: active.Description()}
	if ev == EventProgress {
		if key == s.seen {
			return
		}
		ev = EventPhase
	}
	s.seen = key
	a := Activity{
		Time:        s.env.Now(),
		WorkerID:    s.w.ID(),
		Event:       ev,
		TaskID:      t.ID(),
		Task:        t.Name(),
		Kind:        t.Kind(),
		Phase:       string(active.Phase()),
		Description: active.Description(),
	}
	if len(s.history) >= s.cfg.HistorySize {
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}
	s.history = append(s.history, a)
	if s.rec != nil {
		s.rec.RecordActivity(a)
	}
}

// History returns the most recent activities, oldest first.
func (s *Scheduler) History() []Activity {
	return append([]Activity(nil), s.history...)
}
