package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// DeadlineLayout is how deadlines are shown to the user.
const DeadlineLayout = "Jan 2, 2006"

// NoDeadline is shown for tasks without a deadline.
const NoDeadline = "No deadline"

// Priority badge palette. Out-of-range priorities use the style for 1.
var (
	priorityStyleNames = map[models.Priority]string{
		1: "gray",
		2: "blue",
		3: "green",
		4: "yellow",
		5: "red",
	}

	priorityStyles = map[string]lipgloss.Style{
		"gray":   badgeStyle("252", "238"),
		"blue":   badgeStyle("153", "25"),
		"green":  badgeStyle("157", "28"),
		"yellow": badgeStyle("229", "136"),
		"red":    badgeStyle("224", "124"),
	}

	aiBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("225")).
			Background(lipgloss.Color("90")).
			Padding(0, 1)

	itemTitleStyle    = lipgloss.NewStyle().Bold(true)
	itemSelectedStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderLeft(true).
				BorderForeground(lipgloss.Color("62")).
				PaddingLeft(1)
	itemStyle       = lipgloss.NewStyle().PaddingLeft(2)
	descStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	metaStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusProgress  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func badgeStyle(fg, bg string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(fg)).
		Background(lipgloss.Color(bg)).
		Padding(0, 1)
}

// PriorityStyleName returns the badge color name for p.
func PriorityStyleName(p models.Priority) string {
	if name, ok := priorityStyleNames[p]; ok {
		return name
	}
	return priorityStyleNames[models.MinPriority]
}

func priorityBadge(p models.Priority) string {
	return priorityStyles[PriorityStyleName(p)].Render(fmt.Sprintf("P%d", int(p)))
}

// formatDeadline renders d, or NoDeadline when absent.
func formatDeadline(d *models.Date) string {
	if d == nil || d.IsZero() {
		return NoDeadline
	}
	return d.Format(DeadlineLayout)
}

func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.StatusInProgress:
		return statusProgress
	case models.StatusCompleted:
		return statusCompleted
	default:
		return statusPending
	}
}

// renderTaskItem draws one task: title with badges, optional description,
// then deadline, AI deadline and status.
func renderTaskItem(t models.Task, selected bool, width int) string {
	var b strings.Builder

	b.WriteString(itemTitleStyle.Render(t.Title))
	b.WriteString(" ")
	b.WriteString(priorityBadge(t.Priority))
	if t.AIPriorityScore != nil {
		b.WriteString(" ")
		b.WriteString(aiBadgeStyle.Render(fmt.Sprintf("AI: %d", int(*t.AIPriorityScore))))
	}

	if t.Description != "" {
		b.WriteString("\n")
		desc := descStyle
		if width > 8 {
			desc = desc.Width(width - 4)
		}
		b.WriteString(desc.Render(t.Description))
	}

	meta := []string{"Due: " + formatDeadline(t.Deadline)}
	if t.AISuggestedDeadline != nil && !t.AISuggestedDeadline.IsZero() {
		meta = append(meta, "AI: "+t.AISuggestedDeadline.Format(DeadlineLayout))
	}
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(strings.Join(meta, "  ")))
	b.WriteString("  ")
	b.WriteString(statusStyle(t.Status).Render("[" + t.Status.Label() + "]"))

	if selected {
		return itemSelectedStyle.Render(b.String())
	}
	return itemStyle.Render(b.String())
}
