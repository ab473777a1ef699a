// Package retention decides which archived records survive the daily purge
// cycle: a per-group count cap plus a stricter age limit for inline images.
package retention

import (
	"sort"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/domain"
)

const (
	// DefaultMaxPerGroup is the per-group sliding-window cap.
	DefaultMaxPerGroup = 3000
	// DefaultImageTTL bounds how long inline-image rows are kept.
	DefaultImageTTL = 24 * time.Hour
	// maintenanceWindow is how long after local midnight the daily rules run.
	maintenanceWindow = 5 * time.Minute
)

// Policy holds the retention rules. The zero value is not usable; construct
// with NewPolicy.
type Policy struct {
	MaxPerGroup int
	ImageTTL    time.Duration
	Location    *time.Location
}

// NewPolicy returns the default policy evaluated in loc.
func NewPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{
		MaxPerGroup: DefaultMaxPerGroup,
		ImageTTL:    DefaultImageTTL,
		Location:    loc,
	}
}

// InMaintenanceWindow reports whether now falls inside the daily maintenance
// window, the first five minutes after local midnight. Outside the window no
// eviction rule executes.
func (p Policy) InMaintenanceWindow(now time.Time) bool {
	local := now.In(p.Location)
	return local.Hour() == 0 && time.Duration(local.Minute())*time.Minute < maintenanceWindow
}

// ImageCutoff returns the millisecond timestamp below which image rows are
// evicted by the age rule.
func (p Policy) ImageCutoff(now time.Time) int64 {
	return now.Add(-p.ImageTTL).UnixMilli()
}

// SelectEvictions returns the ids of records that do not survive a purge
// cycle at time now: per group, everything beyond the newest MaxPerGroup rows
// by timestamp, plus any image row older than ImageTTL regardless of group or
// the count cap. Each group's budget is independent of the others.
func (p Policy) SelectEvictions(records []*domain.Message, now time.Time) []string {
	byGroup := make(map[string][]*domain.Message)
	for _, m := range records {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m)
	}

	evict := make(map[string]bool)
	for _, group := range byGroup {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TimeStamp > group[j].TimeStamp
		})
		for i := p.MaxPerGroup; i < len(group); i++ {
			evict[group[i].ID] = true
		}
	}

	cutoff := p.ImageCutoff(now)
	for _, m := range records {
		if m.Content.IsImage() && m.TimeStamp < cutoff {
			evict[m.ID] = true
		}
	}

	ids := make([]string, 0, len(evict))
	for _, m := range records {
		if evict[m.ID] {
			ids = append(ids, m.ID)
			evict[m.ID] = false
		}
	}
	return ids
}
