package outbox

import (
	"fmt"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
)

const (
	// TopicLifecycle carries activity creation, edits and retirement.
	TopicLifecycle = "activity_lifecycle"
	// TopicProgress carries period marks and streak changes.
	TopicProgress = "activity_progress"
)

// Route describes where an event type is published and how it is validated.
type Route struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[domain.EventType]Route{
	domain.EventActivityCreated: {
		Topic:         TopicLifecycle,
		SchemaSubject: TopicLifecycle + "-ActivityCreated",
		Schema:        activityCreatedSchema,
	},
	domain.EventActivityUpdated: {
		Topic:         TopicLifecycle,
		SchemaSubject: TopicLifecycle + "-ActivityUpdated",
		Schema:        activityUpdatedSchema,
	},
	domain.EventActivityRetired: {
		Topic:         TopicLifecycle,
		SchemaSubject: TopicLifecycle + "-ActivityRetired",
		Schema:        activityRetiredSchema,
	},
	domain.EventActivityPeriodMarked: {
		Topic:         TopicProgress,
		SchemaSubject: TopicProgress + "-PeriodMarked",
		Schema:        periodMarkedSchema,
	},
}

// RouteFor returns the publishing route of an event type.
func RouteFor(eventType domain.EventType) (Route, error) {
	route, ok := catalog[eventType]
	if !ok {
		return Route{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	return route, nil
}

// routeForSubject resolves the route of a stored outbox row. Rows written by an
// older catalog may carry a subject that no longer matches.
func routeForSubject(eventType, subject string) (Route, error) {
	route, err := RouteFor(domain.EventType(eventType))
	if err != nil {
		return Route{}, err
	}
	if route.SchemaSubject != subject {
		return Route{}, fmt.Errorf("schema subject %q does not match %s", subject, route.SchemaSubject)
	}
	return route, nil
}

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "title": {"type": "string"},
    "frequency": {"type": "string", "enum": ["daily", "weekly", "monthly"]},
    "start_date": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "title", "frequency", "start_date", "occurred_at"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "title": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "title", "occurred_at"],
  "additionalProperties": false
}`

const activityRetiredSchema = `{
  "type": "object",
  "title": "ActivityRetired",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "occurred_at"],
  "additionalProperties": false
}`

const periodMarkedSchema = `{
  "type": "object",
  "title": "PeriodMarked",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "frequency": {"type": "string", "enum": ["daily", "weekly", "monthly"]},
    "period_date": {"type": "string", "format": "date"},
    "completed": {"type": "boolean"},
    "current_streak": {"type": "integer", "minimum": 0},
    "best_streak": {"type": "integer", "minimum": 0},
    "new_record": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "frequency", "period_date", "completed", "current_streak", "best_streak", "new_record", "occurred_at"],
  "additionalProperties": false
}`
