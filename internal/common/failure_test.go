package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestFailureMessageByStatus(t *testing.T) {
	cases := map[int]string{
		0:   MsgNoConnection,
		400: MsgInvalidData,
		401: MsgInvalidCredentials,
		403: MsgNotVerified,
		500: MsgServerError,
		502: MsgGeneric,
		404: MsgGeneric,
	}
	for status, want := range cases {
		err := fmt.Errorf("submit: %w", statusErr(status))
		require.Equal(t, want, FailureMessage(err), "status %d", status)
	}
}

func TestFailureMessageWithoutStatus(t *testing.T) {
	require.Equal(t, "", FailureMessage(nil))
	require.Equal(t, MsgGeneric, FailureMessage(errors.New("boom")))
}

func TestAppErrorStatus(t *testing.T) {
	err := NewAppError("UNAUTHORIZED", "invalid credentials", http.StatusUnauthorized, nil)
	require.Equal(t, MsgInvalidCredentials, FailureMessage(err))
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, NewAppError("NOT_FOUND", "missing", http.StatusNotFound, nil).WithDetails(map[string]string{"id": "x"}))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"missing","details":{"id":"x"}}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	WriteError(rr, errors.New("hidden"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "hidden")
}
