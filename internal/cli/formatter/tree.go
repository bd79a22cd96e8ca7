package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TreeItem is one line of a tree display.
type TreeItem struct {
	Label       string
	Level       int
	IsLast      bool
	Placeholder bool
	// Detail is right-aligned after the label, typically an amount.
	Detail string
}

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
	treeBlank  = "   "
)

// RenderTree renders items as an indented tree with box-drawing connectors.
// items must be in depth-first order; ancestors that were the last of their
// siblings get blank guides instead of pipes.
func RenderTree(items []TreeItem) string {
	if len(items) == 0 {
		return ""
	}

	type line struct {
		content string
		badge   string
	}
	lines := make([]line, len(items))
	maxWidth := 0
	// lastAt[l] records whether the open ancestor at level l was a last child.
	var lastAt []bool

	for idx, item := range items {
		if item.Level >= len(lastAt) {
			lastAt = append(lastAt, make([]bool, item.Level-len(lastAt)+1)...)
		}
		lastAt[item.Level] = item.IsLast

		var prefix strings.Builder
		if item.Level > 0 {
			for l := 1; l < item.Level; l++ {
				if lastAt[l] {
					prefix.WriteString(treeBlank)
				} else {
					prefix.WriteString(treePipe)
				}
			}
			if item.IsLast {
				prefix.WriteString(treeCorner)
			} else {
				prefix.WriteString(treeBranch)
			}
		}

		label := item.Label
		if item.Placeholder {
			label = StyleYellow.Render(label + " *")
		}
		content := StyleDim.Render(prefix.String()) + label
		lines[idx].content = content
		if item.Detail != "" {
			lines[idx].badge = StyleBlue.Render(item.Detail)
		}
		if w := lipgloss.Width(content); w > maxWidth {
			maxWidth = w
		}
	}

	var b strings.Builder
	for _, l := range lines {
		if l.badge == "" {
			b.WriteString(l.content + "\n")
			continue
		}
		pad := maxWidth - lipgloss.Width(l.content)
		if pad < 0 {
			pad = 0
		}
		b.WriteString(l.content + strings.Repeat(" ", pad) + "  " + l.badge + "\n")
	}
	return b.String()
}
