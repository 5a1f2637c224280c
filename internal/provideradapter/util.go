package provideradapter

import (
	"bytes"
	"errors"
)

var errNotJSON = errors.New("payload is not JSON")

// findJSONStart scans payload for the start of a JSON object or array,
// skipping past any HTTP headers a raw-capture payload might carry, grounded
// on the teacher's internal/protocol/parser_utils.go helper of the same name.
func findJSONStart(data []byte) int {
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return 0
	}
	if idx := bytes.Index(data, []byte("\r\n\r\n")); idx >= 0 {
		bodyStart := idx + 4
		if bodyStart < len(data) && (data[bodyStart] == '{' || data[bodyStart] == '[') {
			return bodyStart
		}
	}
	if idx := bytes.Index(data, []byte("\n\n")); idx >= 0 {
		bodyStart := idx + 2
		if bodyStart < len(data) && (data[bodyStart] == '{' || data[bodyStart] == '[') {
			return bodyStart
		}
	}
	for i, b := range data {
		if b == '{' || b == '[' {
			return i
		}
	}
	return -1
}
