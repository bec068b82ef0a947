package orchestrator

import "strconv"

func formatID(prefix string, n int64) string {
	return prefix + "-" + strconv.FormatInt(n, 10)
}

func motionInstanceID(chatRequestID, suffix string) string {
	if suffix == "" {
		return "motion-" + chatRequestID
	}
	return "motion-" + chatRequestID + "-" + suffix
}
