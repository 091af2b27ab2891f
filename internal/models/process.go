package models

// Category tags a process key with the workload it belongs to
type Category string

const (
	CategoryGame     Category = "game"
	CategoryCreative Category = "creative"
	CategoryBrowser  Category = "browser"
	CategoryOther    Category = "other"
)

// RawProcess is one entry of an OS process enumeration
type RawProcess struct {
	Name     string
	MemoryKB uint64
}

// ProcessRecord aggregates every running instance of one executable
type ProcessRecord struct {
	Key           string   `json:"key"`
	DisplayName   string   `json:"display_name"`
	MemoryKB      uint64   `json:"memory_kb"`
	InstanceCount int      `json:"instances"`
	Category      Category `json:"category"`
}

// AppActivity is a census record as shown to the user
type AppActivity struct {
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	MemoryMB  float64  `json:"memory_mb"`
	Instances int      `json:"instances"`
	Category  Category `json:"category"`
}
