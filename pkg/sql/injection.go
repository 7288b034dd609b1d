package sql

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a bind parameter that matched a SQL injection pattern.
type InjectionCheckResult struct {
	Position    int    // 1-based placeholder position ($1, $2, ...)
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string
}

func (r *InjectionCheckResult) Error() string {
	return fmt.Sprintf("parameter $%d rejected: injection pattern %q", r.Position, r.Fingerprint)
}

// CheckParameterForInjection screens one positional parameter.
// Only strings are checked; other values cannot carry SQL text.
func CheckParameterForInjection(position int, value any) *InjectionCheckResult {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return nil
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
		return &InjectionCheckResult{
			Position:    position,
			Fingerprint: string(fingerprint),
			Value:       s,
		}
	}
	return nil
}

// CheckParameters screens positional parameters in order and returns the first hit.
func CheckParameters(params []any) *InjectionCheckResult {
	for i, p := range params {
		if r := CheckParameterForInjection(i+1, p); r != nil {
			return r
		}
	}
	return nil
}
