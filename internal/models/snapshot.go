package models

import "time"

// Utilization holds load percentages rounded to one decimal
type Utilization struct {
	CPU float64 `json:"cpu"`
	RAM float64 `json:"ram"`
	GPU float64 `json:"gpu"`
}

// MemoryStat is the host memory total and what is still available
type MemoryStat struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// Drive describes one mounted volume
type Drive struct {
	Name        string  `json:"name"`
	Mountpoint  string  `json:"mountpoint"`
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// NetCounters are cumulative byte counters summed over all interfaces
type NetCounters struct {
	BytesRecv uint64
	BytesSent uint64
}

// NetworkRates are measured throughput figures
type NetworkRates struct {
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
}

// UpdateInfo is the result of the last release manifest check
type UpdateInfo struct {
	CurrentVersion string    `json:"current_version"`
	LatestVersion  string    `json:"latest_version,omitempty"`
	HasUpdate      bool      `json:"has_update"`
	ReleaseNotes   []string  `json:"release_notes,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Snapshot is the immutable state handed to subscribers after each publish
type Snapshot struct {
	Utilization Utilization   `json:"utilization"`
	Activity    []AppActivity `json:"activity"`
	Profile     ProfileState  `json:"profile"`
	Network     NetworkRates  `json:"network"`
	Storage     []Drive       `json:"storage"`
	Update      *UpdateInfo   `json:"update,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Clone deep-copies the slice and pointer fields
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Activity = append([]AppActivity(nil), s.Activity...)
	out.Storage = append([]Drive(nil), s.Storage...)
	out.Profile = s.Profile.clone()
	if s.Update != nil {
		u := *s.Update
		u.ReleaseNotes = append([]string(nil), s.Update.ReleaseNotes...)
		out.Update = &u
	}
	return out
}

func (s ProfileState) clone() ProfileState {
	out := ProfileState{Mode: s.Mode}
	if s.Detected != nil {
		d := *s.Detected
		out.Detected = &d
	}
	if s.Manual != nil {
		m := *s.Manual
		out.Manual = &m
	}
	return out
}
