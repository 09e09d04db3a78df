package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// shortIDLen is how many hex digits of an entry ID are printed. Commands
// accept any unambiguous prefix.
const shortIDLen = 8

// RenderTimeline writes a trip and its ordered entries as text, grouped by
// day. Times are shown in UTC.
func RenderTimeline(w io.Writer, trip domain.Trip, entries []domain.Entry) error {
	fmt.Fprintf(w, "%s%s\n", trip.Title, dateRange(trip))

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "\n  (no entries yet)")
		return err
	}

	// Time and short ID are fixed width, so detail lines line up under the title.
	indent := strings.Repeat(" ", 2+5+2+shortIDLen+2+4)
	day := ""
	for _, e := range entries {
		at := e.Time.UTC()
		if d := at.Format("Mon 02 Jan 2006"); d != day {
			day = d
			fmt.Fprintf(w, "\n%s\n", d)
		}
		id := e.ID.String()[:shortIDLen]
		switch b := e.Body.(type) {
		case domain.Plan:
			mark := "[ ]"
			if b.Completed {
				mark = "[x]"
			}
			fmt.Fprintf(w, "  %s  %s  %s %s\n", at.Format("15:04"), id, mark, b.Title)
			for _, detail := range []string{b.Memo, b.LinkURL} {
				if detail != "" {
					fmt.Fprintf(w, "%s%s\n", indent, detail)
				}
			}
		case domain.Photo:
			line := "[photo] " + b.Path
			if b.Caption != "" {
				line += fmt.Sprintf(" %q", b.Caption)
			}
			fmt.Fprintf(w, "  %s  %s  %s\n", at.Format("15:04"), id, line)
		}
	}
	return nil
}

// RenderJSON writes the page as indented JSON.
func RenderJSON(w io.Writer, trip domain.Trip, entries []domain.Entry) error {
	if entries == nil {
		entries = []domain.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(domain.TripPage{Trip: trip, Entries: entries})
}

func render(w io.Writer, format string, trip domain.Trip, entries []domain.Entry) error {
	if format == "json" {
		return RenderJSON(w, trip, entries)
	}
	return RenderTimeline(w, trip, entries)
}

func dateRange(t domain.Trip) string {
	const layout = "2006-01-02"
	switch {
	case t.StartDate != nil && t.EndDate != nil:
		return fmt.Sprintf(" (%s to %s)", t.StartDate.Format(layout), t.EndDate.Format(layout))
	case t.StartDate != nil:
		return fmt.Sprintf(" (from %s)", t.StartDate.Format(layout))
	case t.EndDate != nil:
		return fmt.Sprintf(" (until %s)", t.EndDate.Format(layout))
	}
	return ""
}

// resolveEntry finds the entry whose ID starts with prefix.
func resolveEntry(entries []domain.Entry, prefix string) (domain.Entry, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return domain.Entry{}, fmt.Errorf("%w: entry id is required", domain.ErrValidation)
	}
	var found []domain.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.ID.String(), prefix) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return domain.Entry{}, fmt.Errorf("entry %s: %w", prefix, domain.ErrNotFound)
	case 1:
		return found[0], nil
	}
	return domain.Entry{}, fmt.Errorf("%w: entry id %s is ambiguous (%d matches)", domain.ErrValidation, prefix, len(found))
}

// parseTime accepts RFC 3339 or "2006-01-02 15:04" in UTC.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q: want RFC 3339 or \"YYYY-MM-DD HH:MM\"", domain.ErrValidation, s)
	}
	return t, nil
}
