package rotation

import (
	"fmt"
	"regexp"
	"strings"
)

// sourceDefPattern splits a source definition into the identifier and an
// optional alias. Aliases may be quoted ("My Group") or bare; everything
// after the first colon belongs to the alias, so aliases whose quotes were
// stripped by command tokenization keep their inner colons.
var sourceDefPattern = regexp.MustCompile(`^([^:]+)(?::(?:"([^"]+)"|(.+)))?$`)

// ValidIdentifier reports whether s looks like a chat identifier the
// platform accepts: a @username, a negative chat ID, or a bare numeric ID.
func ValidIdentifier(s string) bool {
	if strings.HasPrefix(s, "@") || strings.HasPrefix(s, "-") {
		return len(s) > 1
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseSourceDefs parses source definitions of the form `id` or
// `id:"Alias"`. Any invalid definition rejects the whole batch: callers
// must not apply a partial source list.
func ParseSourceDefs(defs []string) ([]Source, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no source chats provided")
	}
	var (
		sources []Source
		errs    []string
	)
	for _, def := range defs {
		m := sourceDefPattern.FindStringSubmatch(def)
		if m == nil {
			errs = append(errs, fmt.Sprintf("invalid source definition: %s", def))
			continue
		}
		id := m[1]
		alias := m[2]
		if alias == "" {
			alias = m[3]
		}
		if !ValidIdentifier(id) {
			errs = append(errs, fmt.Sprintf("invalid channel identifier: %s (from %s)", id, def))
			continue
		}
		sources = append(sources, Source{ID: id, Alias: strings.TrimSpace(alias)})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "\n"))
	}
	return sources, nil
}
