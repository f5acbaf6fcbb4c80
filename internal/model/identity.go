package model

import "strings"

// Identity is what a student enters before the quiz starts.
// RollNumber is the dedup key across completed records.
type Identity struct {
	Name       string `json:"name" bson:"name" validate:"notblank,max=120"`
	RollNumber string `json:"rollNumber" bson:"rollNumber" validate:"notblank,max=64"`
}

// Normalize returns a copy with surrounding whitespace removed
func (i Identity) Normalize() Identity {
	return Identity{
		Name:       strings.TrimSpace(i.Name),
		RollNumber: strings.TrimSpace(i.RollNumber),
	}
}
