package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrUnsupportedMethod      = errors.New("unsupported fermentation method")
	ErrInvalidPreferment      = errors.New("invalid preferment")
	ErrImpossibleFormulation  = errors.New("impossible formulation")
	ErrSourdoughNeedsStarter  = errors.New("sourdough requires starter grams")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInvalidBakeTime        = errors.New("invalid bake time")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ValidationError reports an input outside its declared bounds.
type ValidationError struct {
	Field string
	Value any
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Msg)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransitionError carries the rejected command and the state it was applied to.
type TransitionError struct {
	Command string
	From    string
	Reason  string
}

func (e TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition: %s from %s: %s", e.Command, e.From, e.Reason)
	}
	return fmt.Sprintf("invalid transition: %s from %s", e.Command, e.From)
}

func (e TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
