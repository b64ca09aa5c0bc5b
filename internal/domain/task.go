package domain

import (
	"fmt"
	"unicode/utf8"
)

// MaxDescriptionLength matches the VARCHAR(500) column of the tasks table.
const MaxDescriptionLength = 500

type Task struct {
	ID          string `db:"id" json:"id"`
	Description string `db:"description" json:"description"`
	IsCompleted bool   `db:"is_completed" json:"is_completed"`
	IsLocked    bool   `db:"is_locked" json:"is_locked"`
}

// Validate checks the id and the description length (in characters, not bytes).
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty task id", ErrValidation)
	}
	return ValidateDescription(t.Description)
}

func ValidateDescription(description string) error {
	n := utf8.RuneCountInString(description)
	if n == 0 {
		return fmt.Errorf("%w: empty description", ErrValidation)
	}
	if n > MaxDescriptionLength {
		return fmt.Errorf("%w: description is %d characters, max %d", ErrValidation, n, MaxDescriptionLength)
	}
	return nil
}

// CopyFieldsFrom overwrites the mutable fields, keeping the receiver's id.
func (t *Task) CopyFieldsFrom(src Task) {
	t.Description = src.Description
	t.IsCompleted = src.IsCompleted
	t.IsLocked = src.IsLocked
}
