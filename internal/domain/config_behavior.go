package domain

import "time"

// RetentionWindow returns the history retention window, or zero when
// auto-cleanup is disabled.
func (h HistorySettings) RetentionWindow() time.Duration {
	if !h.AutoCleanup || h.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// TimeoutDuration parses Timeout, falling back to DefaultImageTimeout.
func (s ImageSettings) TimeoutDuration() time.Duration {
	return parseDuration(s.Timeout, DefaultImageTimeout)
}

// GroupPauseDuration parses GroupPause, falling back to DefaultImageGroupPause.
// An explicit "0s" disables the pause.
func (s ImageSettings) GroupPauseDuration() time.Duration {
	return parseDuration(s.GroupPause, DefaultImageGroupPause)
}

// ProbeTimeoutDuration parses ProbeTimeout, falling back to DefaultProbeTimeout.
func (s ImageSettings) ProbeTimeoutDuration() time.Duration {
	return parseDuration(s.ProbeTimeout, DefaultProbeTimeout)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
