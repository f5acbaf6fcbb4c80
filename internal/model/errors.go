package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("operation not allowed in the current session state")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// FieldError describes a problem with one input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when identity input is empty or malformed
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldMap returns field -> message, for JSON error bodies
func (e *ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Message
	}
	return m
}

// DuplicateRollNumberError is returned when a roll number already has a completed record
type DuplicateRollNumberError struct {
	RollNumber string
}

func (e *DuplicateRollNumberError) Error() string {
	return fmt.Sprintf("roll number %q has already completed the quiz", e.RollNumber)
}
