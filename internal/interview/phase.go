package interview

import (
	"fmt"

	"github.com/set-night/interviewcoach/internal/domain"
)

type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhasePlanning     Phase = "planning"
	PhaseInterviewing Phase = "interviewing"
	PhaseCompleted    Phase = "completed"
	PhaseError        Phase = "error"
)

type Event string

const (
	EventContextRead Event = "context_read"
	EventPlanReady   Event = "plan_ready"
	EventPlanFailed  Event = "plan_failed"
	EventUserSend    Event = "user_send"
	EventReplyOK     Event = "reply_ok"
	EventReplyFailed Event = "reply_failed"
	EventEnd         Event = "end"
	EventFault       Event = "fault"
	EventRecover     Event = "recover"
	EventRestart     Event = "restart"
)

// Phases and Events list the closed sets Transition is defined over.
var (
	Phases = []Phase{PhaseInitializing, PhasePlanning, PhaseInterviewing, PhaseCompleted, PhaseError}
	Events = []Event{
		EventContextRead, EventPlanReady, EventPlanFailed, EventUserSend, EventReplyOK,
		EventReplyFailed, EventEnd, EventFault, EventRecover, EventRestart,
	}
)

type edge struct {
	from  Phase
	event Event
}

var transitions = map[edge]Phase{
	{PhaseInitializing, EventContextRead}: PhasePlanning,
	{PhasePlanning, EventPlanReady}:       PhaseInterviewing,
	{PhasePlanning, EventPlanFailed}:      PhaseInterviewing,
	{PhaseInterviewing, EventUserSend}:    PhaseInterviewing,
	{PhaseInterviewing, EventReplyOK}:     PhaseInterviewing,
	{PhaseInterviewing, EventReplyFailed}: PhaseInterviewing,
	{PhaseInterviewing, EventEnd}:         PhaseCompleted,
	{PhaseError, EventRecover}:            PhaseInterviewing,
	{PhaseError, EventRestart}:            PhaseInitializing,
}

// Transition is total over Phases x Events: every pair either yields the
// next phase or ErrInvalidTransition. Completed is terminal, even for faults.
func Transition(from Phase, ev Event) (Phase, error) {
	if ev == EventFault {
		switch from {
		case PhaseInitializing, PhasePlanning, PhaseInterviewing, PhaseError:
			return PhaseError, nil
		}
	}
	if next, ok := transitions[edge{from, ev}]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%w: %s on %s", domain.ErrInvalidTransition, ev, from)
}
