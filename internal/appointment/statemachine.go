package appointment

import "time"

// Actor identifies who requested a status change.
type Actor string

const (
	ActorStaff   Actor = "staff"
	ActorPatient Actor = "patient"
)

var staffTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether actor may move an appointment from one
// status to another. Patients can only cancel; the time check for that
// lives in CanBeCancelled.
func CanTransition(from, to Status, actor Actor) bool {
	switch actor {
	case ActorStaff:
		for _, allowed := range staffTransitions[from] {
			if allowed == to {
				return true
			}
		}
		return false
	case ActorPatient:
		return to == StatusCancelledByPatient && !from.IsTerminal()
	default:
		return false
	}
}

// CanBeCancelled is true while the appointment is live and still ahead of now.
func (a *Appointment) CanBeCancelled(now time.Time) bool {
	if a.DeletedAt != nil || a.Status.IsTerminal() {
		return false
	}
	return a.ScheduledAt.After(now)
}

// Transition describes a persisted status change. From is empty when the
// appointment was just created.
type Transition struct {
	Appointment *Appointment
	From        Status
	To          Status
	Actor       Actor
}

func (t Transition) Created() bool {
	return t.From == ""
}
