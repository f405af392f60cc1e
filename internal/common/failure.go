package common

import "errors"

// User-facing failure messages shown inline by the login and checkout views.
const (
	MsgNoConnection       = "No connection. Check your internet."
	MsgInvalidData        = "Invalid data. Review the form."
	MsgServerError        = "Server error. Try again later."
	MsgInvalidCredentials = "Invalid credentials. Try again."
	MsgNotVerified        = "Account not verified. Check your email."
	MsgGeneric            = "Could not complete the request. Try again."
)

type statusCoder interface {
	StatusCode() int
}

// Status extracts the HTTP status carried by err. The second result is false when
// no error in the chain reports one.
func Status(err error) (int, bool) {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// FailureMessage translates a failed request into the message shown to the user.
// Status 0 means the request never reached the server.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	status, ok := Status(err)
	if !ok {
		return MsgGeneric
	}
	switch status {
	case 0:
		return MsgNoConnection
	case 400:
		return MsgInvalidData
	case 401:
		return MsgInvalidCredentials
	case 403:
		return MsgNotVerified
	case 500:
		return MsgServerError
	default:
		return MsgGeneric
	}
}
