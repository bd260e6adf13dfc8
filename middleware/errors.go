package middleware

type ClientError struct {
	MessageKey string `json:"messageKey"`
	Message    string `json:"message"`
}

var (
	InvalidTokenResponse = ClientError{
		MessageKey: "invalidTokenResponse",
		Message:    "Invalid Token Response",
	}
	ErrOpenIDConfiguration = ClientError{
		MessageKey: "40099",
		Message:    "OIDC .well-known/configuration could not be retrieved",
	}
	TokenExpiredResponse = ClientError{
		MessageKey: "tokenExpired",
		Message:    "Token expired",
	}
)
