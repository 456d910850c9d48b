package escaperoom

import (
	"fmt"
	"strings"
)

// Normalize fills authoring defaults: theme ANCIENT, the default timer and
// the default point value.
func (r *Room) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Theme == "" {
		r.Theme = ThemeAncient
	}
	if r.TimerSeconds == 0 {
		r.TimerSeconds = DefaultTimerSeconds
	}
	for i := range r.Objects {
		r.Objects[i].Normalize()
	}
}

func (r Room) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("room name is required: %w", ErrValidation)
	}
	if !r.Theme.Valid() {
		return fmt.Errorf("theme %q must be ANCIENT or SPACE: %w", r.Theme, ErrValidation)
	}
	if r.TimerSeconds < MinTimerSeconds || r.TimerSeconds > MaxTimerSeconds {
		return fmt.Errorf("timerSeconds must be between %d and %d: %w", MinTimerSeconds, MaxTimerSeconds, ErrValidation)
	}
	for i, o := range r.Objects {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
	}
	return nil
}

func (o *PuzzleObject) Normalize() {
	o.Question = strings.TrimSpace(o.Question)
	o.Hint = strings.TrimSpace(o.Hint)
	if o.Points == 0 {
		o.Points = DefaultPoints
	}
}

// Validate enforces the authoring rules. The expected answer is kept as
// typed; the evaluator normalizes it at comparison time.
func (o PuzzleObject) Validate() error {
	if !o.Shape.Type.Valid() {
		return fmt.Errorf("shape type %q is not a known object type: %w", o.Shape.Type, ErrValidation)
	}
	if o.Question == "" {
		return fmt.Errorf("question is required: %w", ErrValidation)
	}
	if strings.TrimSpace(o.ExpectedAnswer) == "" {
		return fmt.Errorf("answer is required: %w", ErrValidation)
	}
	if o.Points < MinPoints || o.Points > MaxPoints {
		return fmt.Errorf("points must be between %d and %d: %w", MinPoints, MaxPoints, ErrValidation)
	}
	return nil
}
