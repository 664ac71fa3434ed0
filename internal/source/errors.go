package source

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

const maxErrorBody = 200

// RemoteError is returned by adapters when the remote system answers with
// a non-success HTTP status.
type RemoteError struct {
	Kind       Kind
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return fmt.Sprintf("%s %s: remote status %d: %s", e.Kind, e.Op, e.StatusCode, body)
}

// AsRemoteError returns the RemoteError in err's chain, if any.
func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HasStatus reports whether err is a RemoteError with one of the codes.
func HasStatus(err error, codes ...int) bool {
	re, ok := AsRemoteError(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if re.StatusCode == c {
			return true
		}
	}
	return false
}

// IsNotFound reports whether the remote item no longer exists.
func IsNotFound(err error) bool {
	return HasStatus(err, http.StatusNotFound, http.StatusGone)
}

// IsUnauthorized reports whether the credential was rejected.
func IsUnauthorized(err error) bool {
	return HasStatus(err, http.StatusUnauthorized, http.StatusForbidden)
}
