// Package errors provides structured error handling for the digest service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Source errors
	CodeAdapterFailure Code = "ADAPTER_FAILURE"

	// Token errors
	CodeTokenExpired      Code = "TOKEN_EXPIRED"
	CodeTokenInvalid      Code = "TOKEN_INVALID"
	CodeActionMismatch    Code = "ACTION_MISMATCH"
	CodeSigningKeyMissing Code = "SIGNING_KEY_MISSING"

	// Subscriber errors
	CodeInvalidEmail       Code = "INVALID_EMAIL"
	CodeSubscriberNotFound Code = "SUBSCRIBER_NOT_FOUND"
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"

	// Dispatch errors
	CodeDeliveryFailure Code = "DELIVERY_FAILURE"
	CodePassInProgress  Code = "PASS_IN_PROGRESS"
)

var userMessages = map[Code]string{
	CodeUnknown:            "An unexpected error occurred.",
	CodeAdapterFailure:     "A news source could not be reached.",
	CodeTokenExpired:       "This link has expired. Use the link from a more recent newsletter.",
	CodeTokenInvalid:       "This link is not valid.",
	CodeActionMismatch:     "This link cannot be used for this action.",
	CodeSigningKeyMissing:  "Subscription links are temporarily unavailable.",
	CodeInvalidEmail:       "Please provide a valid email address.",
	CodeSubscriberNotFound: "This email is not subscribed.",
	CodePersistenceFailure: "Your change could not be saved.",
	CodeDeliveryFailure:    "The newsletter could not be delivered.",
	CodePassInProgress:     "A newsletter dispatch is already running.",
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad input or rejected authorization
	case CodeTokenExpired,
		CodeTokenInvalid,
		CodeActionMismatch,
		CodeInvalidEmail,
		CodeSubscriberNotFound:
		return http.StatusBadRequest

	case CodePassInProgress:
		return http.StatusConflict

	case CodeAdapterFailure, CodeDeliveryFailure:
		return http.StatusBadGateway

	case CodeSigningKeyMissing, CodePersistenceFailure:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the user-facing copy for a code.
func (c Code) UserMessage() string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return userMessages[CodeUnknown]
}
