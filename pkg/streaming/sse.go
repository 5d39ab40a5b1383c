package streaming

import "strings"

// DrainSSEEvents consumes *buffer up to and including each "\n\n" event
// boundary, returning the extracted data payloads in order and leaving
// any trailing incomplete event in *buffer. Within one event, every
// "data:" line's text is collected and joined with "\n"; an event with
// no "data:" line contributes nothing (it is dropped, not emitted as an
// empty payload).
func DrainSSEEvents(buffer *string) []string {
	var payloads []string

	for {
		idx := strings.Index(*buffer, "\n\n")
		if idx == -1 {
			break
		}
		event := (*buffer)[:idx]
		*buffer = (*buffer)[idx+2:]

		if payload, ok := extractDataPayload(event); ok {
			payloads = append(payloads, payload)
		}
	}

	return payloads
}

func extractDataPayload(event string) (string, bool) {
	var lines []string
	for _, line := range strings.Split(event, "\n") {
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			lines = append(lines, strings.TrimPrefix(rest, " "))
		}
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}
