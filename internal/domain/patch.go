package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntryPatch is a partial update of an entry. Nil fields are left untouched.
// Memo is the plan memo or the photo caption; Title and LinkURL only apply to
// plans. A patch never carries a kind, so the discriminant cannot change.
type EntryPatch struct {
	Time    *time.Time
	Title   *string
	Memo    *string
	LinkURL *string
}

// IsEmpty reports whether the patch sets no field at all.
func (p EntryPatch) IsEmpty() bool {
	return p.Time == nil && p.Title == nil && p.Memo == nil && p.LinkURL == nil
}

// Validate runs the checks that do not depend on the entry's kind.
func (p EntryPatch) Validate() error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: at least one field must be supplied", ErrValidation)
	}
	if p.Time != nil && p.Time.IsZero() {
		return fmt.Errorf("%w: time must not be empty", ErrValidation)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

// ValidateFor runs Validate and checks that every supplied field applies to
// kind.
func (p EntryPatch) ValidateFor(kind Kind) error {
	if err := p.Validate(); err != nil {
		return err
	}
	switch kind {
	case KindPlan:
	case KindPhoto:
		if p.Title != nil {
			return fmt.Errorf("%w: title does not apply to PHOTO entries", ErrValidation)
		}
		if p.LinkURL != nil {
			return fmt.Errorf("%w: link_url does not apply to PHOTO entries", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown entry kind %q", ErrValidation, kind)
	}
	return nil
}

// Apply returns a copy of e with the patch applied. It does not validate;
// call ValidateFor first.
func (p EntryPatch) Apply(e Entry) Entry {
	if p.Time != nil {
		e.Time = *p.Time
	}
	switch b := e.Body.(type) {
	case Plan:
		if p.Title != nil {
			b.Title = *p.Title
		}
		if p.Memo != nil {
			b.Memo = *p.Memo
		}
		if p.LinkURL != nil {
			b.LinkURL = *p.LinkURL
		}
		e.Body = b
	case Photo:
		if p.Memo != nil {
			b.Caption = *p.Memo
		}
		e.Body = b
	}
	return e
}
