package publish

import "strings"

// transientMarkers are substrings of gh/git error output that indicate a
// retryable condition. Anything else is treated as permanent.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"temporarily unavailable",
	"temporary failure",
	"could not resolve host",
	"rate limit",
	"api rate limit",
	"502",
	"503",
	"504",
	"internal server error",
	"eof",
}

// permanentMarkers override transient detection. An auth failure can contain
// "403" style text that would otherwise look retryable.
var permanentMarkers = []string{
	"authentication failed",
	"permission denied",
	"not permitted",
	"repository not found",
	"protected branch",
	"invalid branch name",
	"nothing to commit",
	"already exists",
}

// isTransient classifies a publish-step error. Retrying a permanent failure
// wastes the retry budget and can duplicate remote state, so classification
// errs on the permanent side.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return false
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
