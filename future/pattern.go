package future

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// errZeroMaxCalls is the cause attached to an InvalidPatternError when the
// maxCalls field is the literal "0". Zero is only expressible as "*"
// (unbounded); a literal zero calls for zero executions, which is not a
// schedule worth building a future for.
var errZeroMaxCalls = errors.New("maxCalls must be greater than 0, or \"*\" for unbounded")

// patternRegexp mirrors the source grammar's regex exactly: the prefix
// group is optional, and the trailing group always captures whatever
// remains, including a malformed or unbalanced brace. This is intentional
// fallthrough leniency: a pattern like "{5 * * * * *" (missing comma and
// closing brace) is not rejected at this stage — it is handed to cron
// validation as-is and fails there with a message naming the stray "{".
var patternRegexp = regexp.MustCompile(`^(\{(\*|\d+)\s*,\s*(\*|\d+)\})?(.*)$`)

// Pattern is the decoded form of an extended cron pattern:
//
//	extended = ["{" delayField "," maxCallsField "}"] cron
//
// See spec §4.1.
type Pattern struct {
	// Raw is the original, untrimmed pattern string as supplied by the caller.
	Raw string

	// Delay is the non-negative delay before the first registration with the
	// cron engine. Zero means immediate registration.
	Delay int

	// MaxCalls is the maximum number of ticks to run. Zero means unbounded.
	MaxCalls int

	// Cron is the bare five/six-field cron expression with the extended
	// prefix stripped and surrounding whitespace trimmed.
	Cron string
}

// ParsePattern decodes raw into a Pattern and validates its bare cron
// expression using validate. validate is normally a thin wrapper around
// the cron engine's own parser (e.g. cronengine.StandardParser().Parse,
// discarding the returned Schedule) so that ParsePattern stays agnostic of
// which field layout (five-field, six-field-with-seconds, hashed, …) the
// caller's engine expects.
//
// Any parse or validation failure returns an *InvalidPatternError carrying
// the offending field and the original pattern.
func ParsePattern(raw string, validate func(string) error) (Pattern, error) {
	trimmed := strings.TrimSpace(raw)

	m := patternRegexp.FindStringSubmatch(trimmed)
	if m == nil {
		return Pattern{}, &InvalidPatternError{Pattern: raw, Field: "pattern"}
	}

	var p Pattern
	p.Raw = raw

	delayField := m[2]
	if delayField != "" && delayField != "*" {
		n, err := strconv.Atoi(delayField)
		if err != nil {
			return Pattern{}, &InvalidPatternError{Pattern: raw, Field: "delay", Cause: err}
		}
		p.Delay = n
	}

	maxCallsField := m[3]
	if maxCallsField != "" && maxCallsField != "*" {
		n, err := strconv.Atoi(maxCallsField)
		if err != nil {
			return Pattern{}, &InvalidPatternError{Pattern: raw, Field: "maxCalls", Cause: err}
		}
		if n == 0 {
			return Pattern{}, &InvalidPatternError{
				Pattern: raw,
				Field:   "maxCalls",
				Cause:   errZeroMaxCalls,
			}
		}
		p.MaxCalls = n
	}

	p.Cron = strings.TrimSpace(m[4])
	if p.Cron == "" {
		return Pattern{}, &InvalidPatternError{Pattern: raw, Field: "cron"}
	}

	if validate != nil {
		if err := validate(p.Cron); err != nil {
			return Pattern{}, &InvalidPatternError{Pattern: raw, Field: "cron", Cause: err}
		}
	}

	return p, nil
}
