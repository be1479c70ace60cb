// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /auth/reset/{token}.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// ProfileResponse is the authenticated user.
type ProfileResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// MessageResponse is a plain status message.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Msg  string `json:"msg"`
	Code string `json:"code"`
}
