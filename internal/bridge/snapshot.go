package bridge

import (
	"encoding/json"
	"time"

	"github.com/posterrama/fleet-core/internal/device"
)

// stateSnapshot is the fixed-field projection published per device.
// Field order is stable under json.Marshal, so the serialized form is
// canonical and byte-comparable for publish dedup.
type stateSnapshot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Status     string `json:"status"`
	Mode       string `json:"mode"`
	Paused     bool   `json:"paused"`
	Pinned     bool   `json:"pinned"`
	PoweredOff bool   `json:"poweredOff"`
	MediaID    string `json:"mediaId"`
	NowPlaying string `json:"nowPlaying"`
	LastSeen   string `json:"lastSeen,omitempty"`
}

// buildSnapshot derives the publishable view of a device. Status is
// re-derived from last-seen rather than trusting the stored flag.
func buildSnapshot(d *device.Device, availabilityTimeout time.Duration, now time.Time) stateSnapshot {
	snap := stateSnapshot{
		ID:         d.ID,
		Name:       d.Name,
		Location:   d.Location,
		Status:     string(d.EffectiveStatus(availabilityTimeout, now)),
		Mode:       d.Mode(),
		Paused:     d.Paused(),
		Pinned:     d.Pinned(),
		PoweredOff: d.PoweredOff(),
		MediaID:    d.MediaID(),
		NowPlaying: d.NowPlaying(),
	}
	if d.LastSeenAt != nil {
		snap.LastSeen = d.LastSeenAt.UTC().Format(time.RFC3339)
	}
	return snap
}

// canonical returns the snapshot's canonical JSON form.
func (s stateSnapshot) canonical() []byte {
	data, _ := json.Marshal(s) //nolint:errcheck // fixed-field struct cannot fail
	return data
}
