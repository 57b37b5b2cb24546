package schedule

import (
	"fmt"

	"manege-service/pkg/response"
)

// ParticipationState is the explicit three-state machine behind the
// enroll/cancel buttons. CancelledForDate is scoped to one occurrence date;
// the standing enrollment stays intact for every other date.
type ParticipationState int

const (
	NotEnrolled ParticipationState = iota
	Enrolled
	CancelledForDate
)

func (s ParticipationState) String() string {
	switch s {
	case NotEnrolled:
		return "not_enrolled"
	case Enrolled:
		return "enrolled"
	case CancelledForDate:
		return "cancelled_for_date"
	default:
		return fmt.Sprintf("ParticipationState(%d)", int(s))
	}
}

type EffectKind int

const (
	EffectInsertEnrollment EffectKind = iota
	EffectInsertCancellation
)

// Effect is a write the caller must perform to realize a transition. Each
// transition yields at most one effect; there is no multi-step transaction.
type Effect struct {
	Kind EffectKind
}

// NextOnEnroll applies the enroll command. Enrolling is a standing,
// non-dated registration, so an existing enrollment is success, not a
// conflict. A date-scoped cancellation does not block enrolling: the
// standing registration already exists underneath it.
func NextOnEnroll(state ParticipationState) (ParticipationState, []Effect, error) {
	switch state {
	case NotEnrolled:
		return Enrolled, []Effect{{Kind: EffectInsertEnrollment}}, nil
	case Enrolled, CancelledForDate:
		return state, nil, nil
	default:
		return state, nil, fmt.Errorf("enroll: %w: unknown state %s", response.ErrValidation, state)
	}
}

// NextOnCancel applies the dated-cancellation command. Requires a standing
// enrollment. Cancelling an already-cancelled date is idempotent success
// (the concurrent double-cancel case). There is no un-cancel transition.
func NextOnCancel(state ParticipationState) (ParticipationState, []Effect, error) {
	switch state {
	case Enrolled:
		return CancelledForDate, []Effect{{Kind: EffectInsertCancellation}}, nil
	case CancelledForDate:
		return CancelledForDate, nil, nil
	case NotEnrolled:
		return state, nil, fmt.Errorf("cancel: %w: not enrolled in this lesson", response.ErrValidation)
	default:
		return state, nil, fmt.Errorf("cancel: %w: unknown state %s", response.ErrValidation, state)
	}
}
