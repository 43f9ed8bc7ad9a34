// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import "time"

// RecordStatus is a point-in-time view of one extension record.
type RecordStatus struct {
	ID        string    `json:"unique_id"`
	Name      string    `json:"name"`
	Endpoint  string    `json:"endpoint"`
	Version   string    `json:"version"`
	State     string    `json:"state"`
	Attempt   int       `json:"attempt"`
	Cause     string    `json:"cause,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Status returns a snapshot of every record in discovery order.
func (r *Registry) Status() []RecordStatus {
	recs := r.All()
	out := make([]RecordStatus, 0, len(recs))
	for _, rec := range recs {
		id := rec.Identity()
		st := RecordStatus{
			ID:        id.ID(),
			Name:      id.Name(),
			Endpoint:  id.Endpoint(),
			Version:   versionString(id.Version()),
			State:     rec.State().String(),
			Attempt:   rec.Attempt(),
			ChangedAt: rec.ChangedAt(),
		}
		if cause := rec.Cause(); cause != nil {
			st.Cause = cause.Error()
		}
		out = append(out, st)
	}
	return out
}
