package models

import "strings"

// Address is a parsed mailbox with its optional display name.
// Address keeps the casing it arrived with; use Domain for matching.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Domain returns the lower-cased domain part, or "" when the address has none
func (a Address) Domain() string {
	at := strings.LastIndex(a.Address, "@")
	if at < 0 || at == len(a.Address)-1 {
		return ""
	}
	return strings.ToLower(a.Address[at+1:])
}

// Equal compares two addresses case-insensitively
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(a.Address, other.Address)
}

// ParticipantRole tags how a participant appeared on a message
type ParticipantRole string

const (
	RoleFrom ParticipantRole = "from"
	RoleTo   ParticipantRole = "to"
	RoleCc   ParticipantRole = "cc"
	RoleBcc  ParticipantRole = "bcc"
)

// Participant is an address attached to a thread with the role it first appeared in
type Participant struct {
	Address string          `json:"address"`
	Name    string          `json:"name,omitempty"`
	Role    ParticipantRole `json:"role"`
}

// MergeParticipants appends the entries of incoming whose address is not yet
// present in existing. Order of existing is preserved.
func MergeParticipants(existing, incoming []Participant) ([]Participant, bool) {
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[strings.ToLower(p.Address)] = struct{}{}
	}
	merged := existing
	changed := false
	for _, p := range incoming {
		key := strings.ToLower(p.Address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, p)
		changed = true
	}
	return merged, changed
}
