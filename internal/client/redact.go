package client

import "regexp"

// botTokenPattern matches bot tokens embedded in Bot API and file URLs.
var botTokenPattern = regexp.MustCompile(`(/bot)[0-9]+:[A-Za-z0-9_-]+`)

// RedactError returns err's message with any bot token replaced, so errors
// carrying upstream URLs are safe to log.
func RedactError(err error) string {
	return botTokenPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
