package domain

// EventType names an outbox event.
type EventType string

const (
	EventActivityCreated      EventType = "activity.created"
	EventActivityUpdated      EventType = "activity.updated"
	EventActivityRetired      EventType = "activity.retired"
	EventActivityPeriodMarked EventType = "activity.period_marked"
)

// Event is a state change recorded alongside the write that caused it.
type Event struct {
	Type    EventType
	Payload any
}
