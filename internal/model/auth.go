package model

import "github.com/golang-jwt/jwt/v5"

const RoleInstructor = "instructor"

// InstructorClaims are JWT claims for the instructor gate.
// RegisteredClaims.ID is the token ID used for logout revocation.
type InstructorClaims struct {
	InstructorID string `json:"instructorId"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// ClientClaims are JWT claims for one connected quiz-taking client
type ClientClaims struct {
	ClientID string `json:"clientId"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for instructor login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token        string `json:"token"`
	InstructorID string `json:"instructorId"`
	IsInstructor bool   `json:"isInstructor"`
}

// OpenSessionResponse is returned on a client's first contact
type OpenSessionResponse struct {
	ClientID string        `json:"clientId"`
	Token    string        `json:"token"`
	State    *SessionState `json:"state"`
}

// RegisterRequest is the request body for student registration
type RegisterRequest struct {
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
}

// FocusLossRequest is the request body for the HTTP focus-loss fallback
type FocusLossRequest struct {
	Source FocusSource `json:"source"`
}
