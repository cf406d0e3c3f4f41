package mlog

import "strings"

// FormatID formats an ID for logging.
//
// UUIDs are shortened to their first 8 characters. Reply channel tokens have
// each of their slash-separated parts shortened in the same way. Any other ID
// is shown in full.
func FormatID(id string) string {
	if replica, corr, ok := strings.Cut(id, "/"); ok {
		return shortID(replica) + "/" + shortID(corr)
	}

	return shortID(id)
}

func shortID(id string) string {
	if len(id) == 36 && id[8] == '-' && id[13] == '-' {
		return id[:8]
	}

	return id
}
