package httpapi

import "regexp"

// idPattern matches a UUID or the shorter [A-Za-z0-9_-] identifier shape
// used for task/session ids, capped well under any reasonable path length
// — every path-segment id is validated before any store lookup.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validID(id string) bool {
	return id != "" && idPattern.MatchString(id)
}
