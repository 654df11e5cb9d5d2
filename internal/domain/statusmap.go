package domain

import (
	"fmt"
	"sort"
	"strings"
)

// StatusMap is the explicit translation table between local statuses and
// FlyOut status codes for one entity type.
type StatusMap struct {
	// Inbound maps a FlyOut status code to a local status.
	Inbound map[string]string `yaml:"inbound" json:"inbound"`
	// Outbound maps a local status to a FlyOut status code.
	Outbound map[string]string `yaml:"outbound" json:"outbound"`
}

// StatusMaps holds one StatusMap per entity type.
type StatusMaps map[EntityType]StatusMap

// DefaultStatusMaps returns the built-in translation tables.
func DefaultStatusMaps() StatusMaps {
	return StatusMaps{
		EntityInquiry: {
			Inbound: map[string]string{
				"Cancelled": StatusRejected,
				"Closed":    StatusRejected,
				"Active":    StatusUnderReview,
			},
			Outbound: map[string]string{
				StatusNew:         "NEW",
				StatusUnderReview: "UNDER_REVIEW",
				StatusConverted:   "CONVERTED",
				StatusRejected:    "REJECTED",
			},
		},
		EntityClient: {
			Inbound: map[string]string{
				"Cancelled": StatusCancelled,
				"Active":    StatusActive,
			},
			Outbound: map[string]string{
				StatusActive:     "ACTIVE",
				StatusInProgress: "IN_PROGRESS",
				StatusCompleted:  "COMPLETED",
				StatusCancelled:  "CANCELLED",
			},
		},
	}
}

// LocalStatus maps a FlyOut code to a local status.
func (m StatusMaps) LocalStatus(t EntityType, remoteCode string) (string, bool) {
	s, ok := m[t].Inbound[remoteCode]
	return s, ok
}

// RemoteCode maps a local status to its FlyOut code. An unmapped status is a
// configuration error.
func (m StatusMaps) RemoteCode(t EntityType, status string) (string, error) {
	code, ok := m[t].Outbound[status]
	if !ok || code == "" {
		return "", fmt.Errorf("no FlyOut status code mapped for %s status %q: %w", t, status, ErrConfiguration)
	}
	return code, nil
}

// Validate checks that every inbound target is a real local status and that
// every local status has an outbound code.
func (m StatusMaps) Validate() error {
	var problems []string
	for t, statuses := range Statuses {
		sm := m[t]
		for _, s := range statuses {
			if sm.Outbound[s] == "" {
				problems = append(problems, fmt.Sprintf("%s: status %q has no outbound code", t, s))
			}
		}
		for code, s := range sm.Inbound {
			if !ValidStatus(t, s) {
				problems = append(problems, fmt.Sprintf("%s: inbound code %q maps to unknown status %q", t, code, s))
			}
		}
	}
	for t := range m {
		if _, ok := Statuses[t]; !ok {
			problems = append(problems, fmt.Sprintf("unknown entity type %q", t))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("status map: %s: %w", strings.Join(problems, "; "), ErrConfiguration)
	}
	return nil
}
