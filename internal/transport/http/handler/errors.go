package handler

const (
	errInternalServer     = "Internal server error"
	errInvalidCredentials = "Invalid email or password"
	errTokenInvalid       = "Token is invalid or expired"
)
