package rotation

import (
	"fmt"
	"regexp"
	"strings"

	"linkguard/pkg/logx"
)

const (
	// PlaceholderLinksList expands to one line per source.
	PlaceholderLinksList = "links_list"
	// PlaceholderInviteLink is the legacy single-link placeholder; it only
	// ever receives the first successfully generated link.
	PlaceholderInviteLink = "invite_link"

	fallbackHeader = "<b>Updated Invite Links:</b>"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrUnknownPlaceholder marks a template referencing a placeholder outside
// the recognized set. Callers recover by falling back to the default format.
type ErrUnknownPlaceholder struct {
	Name string
}

func (e *ErrUnknownPlaceholder) Error() string {
	return fmt.Sprintf("unknown template placeholder {%s}", e.Name)
}

// substitute replaces every recognized placeholder in template with its
// value. Templates are a closed set: encountering any placeholder not in
// values fails the whole substitution.
func substitute(template string, values map[string]string) (string, error) {
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if _, ok := values[m[1]]; !ok {
			return "", &ErrUnknownPlaceholder{Name: m[1]}
		}
	}
	out := template
	for name, val := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out, nil
}

// BuildLinksBlock formats one line per result as `<display>: <link>` or
// `<display>: Not available`. The display name is the source alias when
// configured, otherwise the raw identifier in code style. Results are
// zipped against sources by position; a missing source gets a synthetic
// label.
func BuildLinksBlock(sources []Source, results []LinkResult) string {
	lines := make([]string, 0, len(results))
	for i, res := range results {
		var display string
		switch {
		case i < len(sources) && sources[i].Alias != "":
			display = sources[i].Alias
		case i < len(sources):
			display = fmt.Sprintf("<code>%s</code>", sources[i].ID)
		default:
			display = fmt.Sprintf("<code>Unknown Source %d</code>", i+1)
		}
		if res.OK() {
			lines = append(lines, display+": "+res.Link)
		} else {
			lines = append(lines, display+": Not available")
		}
	}
	return strings.Join(lines, "\n")
}

// Render produces the outbound announcement text. It never fails: any
// template problem falls back to a fixed header followed by the links
// block, so a bad template can degrade the message but never block a cycle.
func Render(template string, sources []Source, results []LinkResult, log logx.Logger) string {
	block := BuildLinksBlock(sources, results)
	fallback := fallbackHeader + "\n" + block

	if strings.Contains(template, "{"+PlaceholderLinksList+"}") {
		out, err := substitute(template, map[string]string{PlaceholderLinksList: block})
		if err != nil {
			log.Error("template substitution failed, using default format", logx.Err(err))
			return fallback
		}
		return out
	}

	first := firstLink(results)
	if first != "" && strings.Contains(template, "{"+PlaceholderInviteLink+"}") {
		log.Warn("template uses legacy {invite_link}; only the first link is shown")
		out, err := substitute(template, map[string]string{PlaceholderInviteLink: first})
		if err != nil {
			log.Error("template substitution failed, using default format", logx.Err(err))
			return fallback
		}
		return out
	}

	log.Debug("no recognized placeholder in template, using default format")
	return fallback
}

func firstLink(results []LinkResult) string {
	for _, r := range results {
		if r.OK() {
			return r.Link
		}
	}
	return ""
}
