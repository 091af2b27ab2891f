package models

import "time"

// AlertKind names an alert rule; the values double as notification toggle keys
type AlertKind string

const (
	AlertLowStorage AlertKind = "low_storage"
	AlertHighCPU    AlertKind = "high_cpu"
	AlertUpdate     AlertKind = "updates"
)

// AlertKinds lists every kind in display order
var AlertKinds = []AlertKind{AlertLowStorage, AlertHighCPU, AlertUpdate}

// ParseAlertKind accepts the toggle keys
func ParseAlertKind(s string) (AlertKind, bool) {
	for _, k := range AlertKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Alert is raised at most once per Key per session
type Alert struct {
	Key   string    `json:"key"`
	Kind  AlertKind `json:"kind"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}
