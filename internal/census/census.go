// Package census aggregates a raw process list into per-application records.
package census

import (
	"sort"
	"strings"

	"github.com/aleister1102/hostpulse/internal/models"
)

const (
	// DefaultNoiseFloorKB is the memory at or below which a process is not active
	DefaultNoiseFloorKB = 10000

	exeSuffix = ".exe"
)

// Census maps process keys to aggregated records. It is unordered.
type Census map[string]models.ProcessRecord

// Empty is the valid "no active applications" census
func Empty() Census {
	return Census{}
}

// Classifier assigns a category to a normalized process key
type Classifier interface {
	Classify(key string) models.Category
}

// Options configures a Builder. A non-empty Denylist replaces the built-in set.
// A zero NoiseFloorKB selects DefaultNoiseFloorKB; use 1 to keep every process
// that reports any memory.
type Options struct {
	NoiseFloorKB  uint64
	Denylist      []string
	ExtraDenylist []string
	DisplayNames  map[string]string
}

// Builder turns raw process lists into censuses. It is immutable after
// construction and safe for concurrent use.
type Builder struct {
	noiseFloorKB uint64
	denylist     map[string]struct{}
	displayNames map[string]string
	classifier   Classifier
}

// NewBuilder creates a census builder. A nil classifier tags everything "other".
func NewBuilder(opts Options, classifier Classifier) *Builder {
	base := defaultDenylist
	if len(opts.Denylist) > 0 {
		base = opts.Denylist
	}

	denylist := make(map[string]struct{}, len(base)+len(opts.ExtraDenylist))
	for _, name := range base {
		denylist[NormalizeName(name)] = struct{}{}
	}
	for _, name := range opts.ExtraDenylist {
		denylist[NormalizeName(name)] = struct{}{}
	}

	displayNames := make(map[string]string, len(defaultDisplayNames)+len(opts.DisplayNames))
	for k, v := range defaultDisplayNames {
		displayNames[k] = v
	}
	for k, v := range opts.DisplayNames {
		displayNames[NormalizeName(k)] = v
	}

	noiseFloor := opts.NoiseFloorKB
	if noiseFloor == 0 {
		noiseFloor = DefaultNoiseFloorKB
	}

	return &Builder{
		noiseFloorKB: noiseFloor,
		denylist:     denylist,
		displayNames: displayNames,
		classifier:   classifier,
	}
}

// NormalizeName trims, lowercases and strips one trailing ".exe"
func NormalizeName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(key, exeSuffix)
}

// IsDenied reports whether key is a system process
func (b *Builder) IsDenied(key string) bool {
	_, denied := b.denylist[key]
	return denied
}

// Build aggregates raw processes by key. Records at or under the noise floor and
// denylisted keys are dropped before aggregation.
func (b *Builder) Build(raw []models.RawProcess) Census {
	out := make(Census)
	for _, p := range raw {
		if p.MemoryKB <= b.noiseFloorKB {
			continue
		}
		key := NormalizeName(p.Name)
		if key == "" || b.IsDenied(key) {
			continue
		}

		rec, seen := out[key]
		if !seen {
			rec = models.ProcessRecord{
				Key:         key,
				DisplayName: b.displayName(key, p.Name),
				Category:    b.classify(key),
			}
		}
		rec.MemoryKB += p.MemoryKB
		rec.InstanceCount++
		out[key] = rec
	}
	return out
}

func (b *Builder) displayName(key, raw string) string {
	if name, ok := b.displayNames[key]; ok {
		return name
	}
	name := strings.TrimSpace(raw)
	if strings.HasSuffix(strings.ToLower(name), exeSuffix) {
		name = name[:len(name)-len(exeSuffix)]
	}
	return name
}

func (b *Builder) classify(key string) models.Category {
	if b.classifier == nil {
		return models.CategoryOther
	}
	return b.classifier.Classify(key)
}

// Keys returns the census keys in ascending order
func (c Census) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TopN returns up to n records by descending memory, ties broken by key.
// n <= 0 returns every record.
func TopN(c Census, n int) []models.ProcessRecord {
	records := make([]models.ProcessRecord, 0, len(c))
	for _, rec := range c {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].MemoryKB != records[j].MemoryKB {
			return records[i].MemoryKB > records[j].MemoryKB
		}
		return records[i].Key < records[j].Key
	})
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records
}

// ToActivity converts records to their presentation form
func ToActivity(records []models.ProcessRecord) []models.AppActivity {
	out := make([]models.AppActivity, 0, len(records))
	for _, rec := range records {
		out = append(out, models.AppActivity{
			Key:       rec.Key,
			Name:      rec.DisplayName,
			MemoryMB:  MemoryMB(rec.MemoryKB),
			Instances: rec.InstanceCount,
			Category:  rec.Category,
		})
	}
	return out
}

// MemoryMB converts kilobytes to megabytes with one decimal
func MemoryMB(kb uint64) float64 {
	return float64(kb*10/1024) / 10
}
