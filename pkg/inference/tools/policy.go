package tools

import (
	"github.com/mb0/glob"
	"github.com/rs/zerolog/log"
)

// Policy controls which registered tools a request may actually call. Allow
// and Deny hold glob patterns matched against tool names; deny patterns win,
// and an empty allow list means everything not denied is allowed.
type Policy struct {
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty"`
}

func (p Policy) IsAllowed(name string) bool {
	for _, pattern := range p.Deny {
		if matchPattern(pattern, name) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, pattern := range p.Allow {
		if matchPattern(pattern, name) {
			return true
		}
	}
	return false
}

// Filter returns the subset of defs the policy permits, in input order.
func (p Policy) Filter(defs []*Definition) []*Definition {
	if len(p.Allow) == 0 && len(p.Deny) == 0 {
		return defs
	}

	filtered := make([]*Definition, 0, len(defs))
	for _, def := range defs {
		if p.IsAllowed(def.Name) {
			filtered = append(filtered, def)
		}
	}
	return filtered
}

func matchPattern(pattern string, name string) bool {
	matched, err := glob.Match(pattern, name)
	if err != nil {
		log.Warn().Err(err).Str("pattern", pattern).Msg("invalid tool policy pattern")
		return false
	}
	return matched
}
