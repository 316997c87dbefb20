package core

import (
	"sort"
	"strings"
)

func (m *CommandManager) helpText(args []string) string {
	m.mu.RLock()
	cmds := m.cmds
	aliasMap := m.alias
	m.mu.RUnlock()

	// no args: list commands
	if len(args) == 0 {
		names := make([]string, 0, len(cmds))
		for w := range cmds {
			names = append(names, w)
		}
		sort.Strings(names)
		lines := []string{"📚 Commands (use /help <cmd>):"}
		for _, name := range names {
			if desc := cmds[name].Description; desc != "" {
				lines = append(lines, "- /"+name+" — "+desc)
			} else {
				lines = append(lines, "- /"+name)
			}
		}
		return strings.Join(lines, "\n")
	}

	word := strings.TrimPrefix(args[0], "/")
	if canon, ok := aliasMap[word]; ok {
		word = canon
	}
	cmd, ok := cmds[word]
	if !ok {
		return "command not found. try /help"
	}

	lines := []string{"📌 " + word, cmd.Description}
	if cmd.Usage != "" {
		lines = append(lines, "Usage: "+cmd.Usage)
	}
	if len(cmd.Aliases) > 0 {
		lines = append(lines, "Aliases: /"+strings.Join(cmd.Aliases, ", /"))
	}
	return strings.Join(filterEmpty(lines), "\n")
}

func filterEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
