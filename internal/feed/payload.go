package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// ErrRowOmitted is returned by Normalize for an insert or update whose row
// did not fit into the notification. See Payload.Reference.
var ErrRowOmitted = errors.New("feed: row omitted from notification")

// Payload is the raw notification body: {"eventType", "new", "old"}.
// new carries the full row for inserts and updates, or only its id and
// trip_id when the row is too large for NOTIFY; old carries at least the id
// and trip_id of the row for deletes.
type Payload struct {
	EventType string          `json:"eventType"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       *OldRow         `json:"old,omitempty"`
}

// OldRow is the part of a deleted row the feed needs.
type OldRow struct {
	ID     uuid.UUID `json:"id"`
	TripID uuid.UUID `json:"trip_id"`
}

// Reference returns the id and trip_id of an insert or update whose new row
// was cut down to those two fields.
func (p Payload) Reference() (OldRow, bool) {
	if len(p.New) == 0 {
		return OldRow{}, false
	}
	var ref struct {
		OldRow
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(p.New, &ref); err != nil || ref.Kind != "" || ref.ID == uuid.Nil {
		return OldRow{}, false
	}
	return ref.OldRow, true
}

// ParsePayload decodes a notification body.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("feed.ParsePayload: %w", err)
	}
	return p, nil
}

// Normalize turns a raw payload into a ChangeEvent. Inserts and updates
// must carry a row with a known kind; deletes must carry the old id.
// Callers drop payloads that fail here.
func Normalize(p Payload) (domain.ChangeEvent, error) {
	switch domain.ChangeKind(p.EventType) {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if len(p.New) == 0 || string(p.New) == "null" {
			return domain.ChangeEvent{}, fmt.Errorf("feed.Normalize: %s without new row", p.EventType)
		}
		if _, ok := p.Reference(); ok {
			return domain.ChangeEvent{}, fmt.Errorf("feed.Normalize: %w", ErrRowOmitted)
		}
		var e domain.Entry
		if err := json.Unmarshal(p.New, &e); err != nil {
			return domain.ChangeEvent{}, fmt.Errorf("feed.Normalize: %w", err)
		}
		if e.ID == uuid.Nil || e.TripID == uuid.Nil {
			return domain.ChangeEvent{}, fmt.Errorf("feed.Normalize: row without id or trip_id")
		}
		if p.EventType == string(domain.ChangeInsert) {
			return domain.InsertEvent(e), nil
		}
		return domain.UpdateEvent(e), nil
	case domain.ChangeDelete:
		if p.Old == nil || p.Old.ID == uuid.Nil {
			return domain.ChangeEvent{}, fmt.Errorf("feed.Normalize: DELETE without old id")
		}
		return domain.DeleteEvent(p.Old.TripID, p.Old.ID), nil
	default:
		return domain.ChangeEvent{}, fmt.Errorf("feed.Normalize: unknown event type %q", p.EventType)
	}
}

// Message is the websocket frame for one change.
type Message struct {
	Type    domain.ChangeKind `json:"type"`
	TripID  uuid.UUID         `json:"trip_id"`
	EntryID uuid.UUID         `json:"entry_id"`
	Entry   *domain.Entry     `json:"entry,omitempty"`
}

// Encode converts an event into its wire frame.
func Encode(ev domain.ChangeEvent) Message {
	return Message{Type: ev.Kind, TripID: ev.TripID, EntryID: ev.EntryID, Entry: ev.Entry}
}

// Decode validates a wire frame and converts it back into an event.
func Decode(m Message) (domain.ChangeEvent, error) {
	switch m.Type {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if m.Entry == nil {
			return domain.ChangeEvent{}, fmt.Errorf("feed.Decode: %s without entry", m.Type)
		}
		if m.Type == domain.ChangeInsert {
			return domain.InsertEvent(*m.Entry), nil
		}
		return domain.UpdateEvent(*m.Entry), nil
	case domain.ChangeDelete:
		if m.EntryID == uuid.Nil {
			return domain.ChangeEvent{}, fmt.Errorf("feed.Decode: DELETE without entry id")
		}
		return domain.DeleteEvent(m.TripID, m.EntryID), nil
	default:
		return domain.ChangeEvent{}, fmt.Errorf("feed.Decode: unknown type %q", m.Type)
	}
}
