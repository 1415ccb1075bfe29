package slack

import "regexp"

var (
	tsDecimalRe = regexp.MustCompile(`^\d+\.\d+$`)
	tsLinkRe    = regexp.MustCompile(`^\d{16}$`)
)

// NormalizeTimestamp coerces a message timestamp into the Web API's
// seconds.microseconds form. A value already in that form passes through;
// the 16-digit integer shape found in shared message links gains a decimal
// point after the tenth digit; anything else normalizes to the empty string.
func NormalizeTimestamp(ts string) string {
	if tsDecimalRe.MatchString(ts) {
		return ts
	}
	if tsLinkRe.MatchString(ts) {
		return ts[:10] + "." + ts[10:]
	}
	return ""
}
