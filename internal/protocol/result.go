package protocol

import "strconv"

// Code classifies the outcome of a container cycle or a single transaction.
// Containers and transactions share one scheme: 0 is undefined, 20-29 are
// success, 40-49 are temporary transport failures, and 60-79 are permanent
// content or protocol failures. Any code >= 40 invalidates its subject.
type Code int

const (
	ResultUndefined Code = 0

	// Success range. 20 and 21 are issued by the server, 22 and 23 by the
	// client itself.
	ResultOK         Code = 20
	ResultOKDelayed  Code = 21
	ResultClientOK   Code = 22
	ResultClientNoop Code = 23

	// Temporary transport failures, always client-issued.
	ResultTimeout                Code = 40
	ResultConnectionFailed       Code = 41
	ResultServerError            Code = 42
	ResultRedirected             Code = 43
	ResultOtherHTTP              Code = 44
	ResultEmptyResponseContainer Code = 45

	// Permanent content and protocol failures.
	ResultSyntaxError            Code = 60
	ResultAPIVersionNotSupported Code = 61
	ResultMismatchingID          Code = 62
	ResultTransactionInvalid     Code = 63
	ResultForbidden              Code = 64
	ResultUnknownClient          Code = 67
	ResultAuthFailed             Code = 68
)

var codeNames = map[Code]string{
	ResultUndefined:              "undefined",
	ResultOK:                     "ok",
	ResultOKDelayed:              "ok delayed",
	ResultClientOK:               "client ok",
	ResultClientNoop:             "client noop",
	ResultTimeout:                "timeout",
	ResultConnectionFailed:       "connection failed",
	ResultServerError:            "server error",
	ResultRedirected:             "redirected",
	ResultOtherHTTP:              "unexpected http status",
	ResultEmptyResponseContainer: "empty response container",
	ResultSyntaxError:            "syntax error",
	ResultAPIVersionNotSupported: "api version not supported",
	ResultMismatchingID:          "mismatching id",
	ResultTransactionInvalid:     "transaction invalid",
	ResultForbidden:              "forbidden",
	ResultUnknownClient:          "unknown client",
	ResultAuthFailed:             "authentication failed",
}

// Known reports whether the code belongs to the shared scheme. Unknown codes
// in a response force the transaction invalid.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// Success reports whether the code is still in the success range. Undefined
// counts as success so unanswered transactions remain eligible for dispatch.
func (c Code) Success() bool { return c < 40 }

// Failed reports whether the code invalidates its container or transaction.
func (c Code) Failed() bool { return c >= 40 }

// Temporary reports whether the failure may clear up on retry.
func (c Code) Temporary() bool { return c >= 40 && c < 50 }

// Permanent reports whether the failure will not clear up on retry.
func (c Code) Permanent() bool { return c >= 60 }

// AuthFailure reports whether the code signals an authentication or
// unknown-client failure that must force a re-login.
func (c Code) AuthFailure() bool {
	return c == ResultUnknownClient || c == ResultAuthFailed
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "code " + strconv.Itoa(int(c))
}

// Result pairs a code with its human-readable message.
type Result struct {
	Code    Code
	Message string
}

// Failure builds a Result from a code using its canonical name as message.
func Failure(code Code) Result {
	return Result{Code: code, Message: code.String()}
}
