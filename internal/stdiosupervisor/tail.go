package stdiosupervisor

import "strings"

// tail concatenates the captured stderr chunks, bounded to a reasonable
// diagnostic length for embedding in error messages.
func tail(chunks []string) string {
	const maxLen = 2000
	joined := strings.Join(chunks, "")
	if len(joined) > maxLen {
		return joined[len(joined)-maxLen:]
	}
	return joined
}
