// Package events publishes snapshot lifecycle events to Kafka.
package events

import "time"

// EventTypeSnapshotCreated is carried in the event_type header of snapshot events.
const EventTypeSnapshotCreated = "snapshot.created"

// SnapshotCreated is emitted after an export has durably written a new snapshot.
type SnapshotCreated struct {
	EventID   string    `json:"event_id"`
	RunID     string    `json:"run_id"`
	FileName  string    `json:"file_name"`
	Path      string    `json:"path"`
	Date      string    `json:"date"`
	Version   int       `json:"version"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

const snapshotCreatedSchema = `{
  "type": "object",
  "title": "SnapshotCreated",
  "properties": {
    "event_id": {"type": "string"},
    "run_id": {"type": "string"},
    "file_name": {"type": "string"},
    "path": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "version": {"type": "integer", "minimum": 1},
    "rows": {"type": "integer"},
    "columns": {"type": "integer"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "run_id", "file_name", "path", "date", "version", "rows", "created_at"],
  "additionalProperties": false
}`

// SchemaFor returns the JSON schema registered for an event type.
func SchemaFor(eventType string) (string, bool) {
	switch eventType {
	case EventTypeSnapshotCreated:
		return snapshotCreatedSchema, true
	default:
		return "", false
	}
}

// SubjectFor returns the schema registry subject of a topic's values.
func SubjectFor(topic string) string {
	return topic + "-value"
}
