// Package lifecycle holds the application state machine. Everything here is pure:
// callers load records, ask this package for the next state, and persist the result.
package lifecycle

import (
	"fmt"
	"sort"

	"campaignline/internal/domain"
)

type Trigger string

const (
	TriggerApprove         Trigger = "approve"
	TriggerReject          Trigger = "reject"
	TriggerCancel          Trigger = "cancel"
	TriggerStartFilming    Trigger = "start_filming"
	TriggerUploadVideo     Trigger = "upload_video"
	TriggerApproveVideo    Trigger = "approve_video"
	TriggerRequestRevision Trigger = "request_revision"
	TriggerSubmitSNS       Trigger = "submit_sns"
	TriggerFinalize        Trigger = "finalize"
)

// ApplicationLevel is the Slot value used in a TransitionError raised by an
// application-wide trigger.
const ApplicationLevel = -1

// TransitionError is returned for any trigger that is not legal from the current state.
type TransitionError struct {
	Trigger      Trigger
	From         string
	Slot         int
	Precondition string
}

func (e *TransitionError) Error() string {
	if e.Slot == ApplicationLevel {
		return fmt.Sprintf("invalid transition %s from %s: %s", e.Trigger, e.From, e.Precondition)
	}
	return fmt.Sprintf("invalid transition %s for %s from %s: %s", e.Trigger, domain.SlotLabel(e.Slot), e.From, e.Precondition)
}

type slotRule struct {
	from         []domain.SlotState
	to           domain.SlotState
	precondition string
}

var slotRules = map[Trigger]slotRule{
	TriggerStartFilming: {
		from:         []domain.SlotState{domain.SlotSelected},
		to:           domain.SlotFilming,
		precondition: "slot has not been selected for filming",
	},
	TriggerUploadVideo: {
		from:         []domain.SlotState{domain.SlotSelected, domain.SlotFilming, domain.SlotRevisionRequested},
		to:           domain.SlotVideoSubmitted,
		precondition: "slot is not open for video uploads",
	},
	TriggerApproveVideo: {
		from:         []domain.SlotState{domain.SlotVideoSubmitted},
		to:           domain.SlotApproved,
		precondition: "no submitted video awaiting review",
	},
	TriggerRequestRevision: {
		from:         []domain.SlotState{domain.SlotVideoSubmitted},
		to:           domain.SlotRevisionRequested,
		precondition: "no submitted video awaiting review",
	},
	TriggerSubmitSNS: {
		from:         []domain.SlotState{domain.SlotApproved, domain.SlotVideoSubmitted},
		to:           domain.SlotSNSUploaded,
		precondition: "no approved video on file",
	},
	TriggerFinalize: {
		from:         []domain.SlotState{domain.SlotSNSUploaded},
		to:           domain.SlotCompleted,
		precondition: "no sns post submitted",
	},
}

var slotRank = map[domain.SlotState]int{
	domain.SlotSelected:          1,
	domain.SlotFilming:           2,
	domain.SlotRevisionRequested: 3,
	domain.SlotVideoSubmitted:    4,
	domain.SlotApproved:          5,
	domain.SlotSNSUploaded:       6,
	domain.SlotCompleted:         7,
}

// Rank orders assigned slot states from least to most advanced. Unassigned slots rank 0.
func Rank(s domain.SlotState) int {
	return slotRank[s]
}

// IsSlotTrigger reports whether t acts on a single slot.
func IsSlotTrigger(t Trigger) bool {
	_, ok := slotRules[t]
	return ok
}

// Terminal reports whether no further transitions are possible.
func Terminal(status string) bool {
	switch status {
	case domain.StatusRejected, domain.StatusCancelled, domain.StatusCompleted:
		return true
	}
	return false
}

// Active reports whether slot triggers may run for an application in this status.
func Active(status string) bool {
	return status != domain.StatusPending && !Terminal(status)
}

// CanApplySlot reports whether trigger t is legal for a slot in state s, ignoring the
// application status.
func CanApplySlot(s domain.SlotState, t Trigger) bool {
	rule, ok := slotRules[t]
	if !ok {
		return false
	}
	for _, from := range rule.from {
		if from == s {
			return true
		}
	}
	return false
}

// NextSlotState returns the state a slot moves to under trigger t.
func NextSlotState(slot int, s domain.SlotState, t Trigger) (domain.SlotState, error) {
	rule, ok := slotRules[t]
	if !ok {
		return s, fmt.Errorf("unknown slot trigger %s", t)
	}
	if s == domain.SlotNotAssigned {
		return s, &TransitionError{Trigger: t, From: string(s), Slot: slot, Precondition: fmt.Sprintf("%s is not assigned to this application", domain.SlotLabel(slot))}
	}
	if !CanApplySlot(s, t) {
		return s, &TransitionError{Trigger: t, From: string(s), Slot: slot, Precondition: rule.precondition}
	}
	return rule.to, nil
}

// ApplySlotTrigger applies a slot trigger and recomputes the aggregate status.
// The input application is not modified.
func ApplySlotTrigger(app domain.Application, slot int, t Trigger) (domain.Application, error) {
	next := clone(app)
	if !Active(app.Status) {
		return app, &TransitionError{Trigger: t, From: app.Status, Slot: slot, Precondition: inactiveReason(app.Status)}
	}
	s, ok := next.Slot(slot)
	if !ok {
		return app, &TransitionError{Trigger: t, From: app.Status, Slot: slot, Precondition: fmt.Sprintf("campaign has no %s", domain.SlotLabel(slot))}
	}
	to, err := NextSlotState(slot, s.State, t)
	if err != nil {
		return app, err
	}
	s.State = to
	next.Status = Aggregate(next.Status, next.Slots)
	return next, nil
}

func inactiveReason(status string) string {
	switch status {
	case domain.StatusPending:
		return "application has not been selected"
	case domain.StatusCompleted:
		return "application already completed"
	default:
		return fmt.Sprintf("application is %s", status)
	}
}

// NewSlots returns unassigned slots for a campaign of type t.
func NewSlots(t domain.CampaignType) []domain.ApplicationSlot {
	numbers := t.SlotNumbers()
	slots := make([]domain.ApplicationSlot, 0, len(numbers))
	for _, n := range numbers {
		slots = append(slots, domain.ApplicationSlot{Number: n, State: domain.SlotNotAssigned})
	}
	return slots
}

// Approve selects a pending application. Slots listed in assigned move to selected;
// the rest stay not_assigned. An empty list assigns every slot.
func Approve(app domain.Application, assigned []int) (domain.Application, error) {
	if app.Status != domain.StatusPending {
		return app, &TransitionError{Trigger: TriggerApprove, From: app.Status, Slot: ApplicationLevel, Precondition: "application is not pending"}
	}
	next := clone(app)
	want := map[int]bool{}
	for _, n := range assigned {
		if _, ok := next.Slot(n); !ok {
			return app, &TransitionError{Trigger: TriggerApprove, From: app.Status, Slot: ApplicationLevel, Precondition: fmt.Sprintf("campaign has no %s", domain.SlotLabel(n))}
		}
		want[n] = true
	}
	for i := range next.Slots {
		if len(want) == 0 || want[next.Slots[i].Number] {
			next.Slots[i].State = domain.SlotSelected
		} else {
			next.Slots[i].State = domain.SlotNotAssigned
		}
	}
	next.Status = domain.StatusSelected
	next.Status = Aggregate(next.Status, next.Slots)
	return next, nil
}

// Reject closes a pending application.
func Reject(app domain.Application) (domain.Application, error) {
	if app.Status != domain.StatusPending {
		return app, &TransitionError{Trigger: TriggerReject, From: app.Status, Slot: ApplicationLevel, Precondition: "application is not pending"}
	}
	next := clone(app)
	next.Status = domain.StatusRejected
	return next, nil
}

// CancelPolicy controls cancellation of applications that already have a posted slot.
type CancelPolicy struct {
	AllowAfterSNS bool
}

// Cancel rescinds a non-terminal application. Slot states are kept as they were.
func Cancel(app domain.Application, policy CancelPolicy) (domain.Application, error) {
	if Terminal(app.Status) {
		return app, &TransitionError{Trigger: TriggerCancel, From: app.Status, Slot: ApplicationLevel, Precondition: "application already " + app.Status}
	}
	if !policy.AllowAfterSNS && HasPostedSlot(app) {
		return app, &TransitionError{Trigger: TriggerCancel, From: app.Status, Slot: ApplicationLevel, Precondition: "sns post already submitted; cancellation after sns upload is disabled"}
	}
	next := clone(app)
	next.Status = domain.StatusCancelled
	return next, nil
}

// HasPostedSlot reports whether any slot reached sns_uploaded without being finalized.
func HasPostedSlot(app domain.Application) bool {
	for _, s := range app.Slots {
		if s.State == domain.SlotSNSUploaded {
			return true
		}
	}
	return false
}

// Aggregate derives the application status from its slots. Pending, rejected and
// cancelled are not derived and pass through.
func Aggregate(status string, slots []domain.ApplicationSlot) string {
	switch status {
	case domain.StatusPending, domain.StatusRejected, domain.StatusCancelled:
		return status
	}
	least := domain.SlotState("")
	for _, s := range slots {
		if s.State == domain.SlotNotAssigned {
			continue
		}
		if least == "" || Rank(s.State) < Rank(least) {
			least = s.State
		}
	}
	if least == "" {
		return status
	}
	return string(least)
}

// CheckConsistency verifies the stored status matches the slots it summarizes.
func CheckConsistency(app domain.Application) error {
	assigned := 0
	for _, s := range app.Slots {
		if s.State != domain.SlotNotAssigned {
			if _, ok := slotRank[s.State]; !ok {
				return fmt.Errorf("%s has unknown state %s", domain.SlotLabel(s.Number), s.State)
			}
			assigned++
		}
	}
	switch app.Status {
	case domain.StatusPending:
		if assigned > 0 {
			return fmt.Errorf("pending application has assigned slots")
		}
		return nil
	case domain.StatusRejected, domain.StatusCancelled:
		return nil
	}
	if assigned == 0 {
		return fmt.Errorf("application in %s has no assigned slots", app.Status)
	}
	if want := Aggregate(app.Status, app.Slots); want != app.Status {
		return fmt.Errorf("status %s inconsistent with slots (expected %s)", app.Status, want)
	}
	return nil
}

// AssignedSlots returns the numbers of assigned slots in ascending order.
func AssignedSlots(app domain.Application) []int {
	var out []int
	for _, s := range app.Slots {
		if s.State != domain.SlotNotAssigned {
			out = append(out, s.Number)
		}
	}
	sort.Ints(out)
	return out
}

func clone(app domain.Application) domain.Application {
	next := app
	next.Slots = append([]domain.ApplicationSlot(nil), app.Slots...)
	if app.CustomDeadlines != nil {
		next.CustomDeadlines = make(map[string]string, len(app.CustomDeadlines))
		for k, v := range app.CustomDeadlines {
			next.CustomDeadlines[k] = v
		}
	}
	return next
}
