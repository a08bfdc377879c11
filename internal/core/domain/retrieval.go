package domain

import (
	"fmt"
	"strings"
)

type SearchResult struct {
	Payload Payload `json:"payload"`
	Score   float64 `json:"score"`
}

// Role selects the persona template used for the system prompt.
type Role string

const (
	RoleDefault   Role = "default"
	RoleBandit    Role = "bandit"
	RoleScientist Role = "scientist"
	RoleStalker   Role = "stalker"
)

var knownRoles = []Role{RoleDefault, RoleBandit, RoleScientist, RoleStalker}

func KnownRoles() []Role {
	out := make([]Role, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// ParseRole maps user input to a Role; empty input selects RoleDefault.
func ParseRole(raw string) (Role, error) {
	value := Role(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return RoleDefault, nil
	}
	for _, r := range knownRoles {
		if r == value {
			return r, nil
		}
	}
	return "", WrapError(ErrInvalidInput, "parse role", fmt.Errorf("unknown role %q", raw))
}

type Prompt struct {
	System string
	User   string
}

// Answer is what the orchestrator hands back to callers. A failed generation
// yields an empty Text with Degraded set instead of an error.
type Answer struct {
	Question string         `json:"question"`
	Text     string         `json:"answer"`
	Role     Role           `json:"role"`
	Degraded bool           `json:"degraded"`
	Reason   string         `json:"reason,omitempty"`
	Sources  []SearchResult `json:"sources,omitempty"`
}
