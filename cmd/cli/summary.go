package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	config "github.com/cochaviz/vagrantizer/config"
	"github.com/cochaviz/vagrantizer/internal/build"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	familyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	builtStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	statusStyles = map[build.BuildStatus]lipgloss.Style{
		build.BuildStatusSucceeded: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		build.BuildStatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		build.BuildStatusCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		build.BuildStatusNotRun:    mutedStyle,
	}
)

func renderSummary(results []build.BuildResult) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		detail := result.Box
		if result.Release != nil {
			detail = fmt.Sprintf("%s v%d", result.Release.Box, result.Release.Version)
		}
		if result.Err != nil {
			detail = firstLine(result.Err.Error())
		}
		took := ""
		if result.Duration > 0 {
			took = result.Duration.Round(time.Second).String()
		}
		rows = append(rows, []string{
			result.Target.Family,
			result.Target.Revision,
			statusStyles[result.Status].Render(string(result.Status)),
			took,
			detail,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("SYSTEM", "REVISION", "STATUS", "TOOK", "BOX / ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})

	counts := build.Summary(results)
	return fmt.Sprintf("%s\n%d of %d boxes built", t.Render(), counts[build.BuildStatusSucceeded], len(results))
}

func renderSystems(listings []config.SystemListing) string {
	var b strings.Builder
	for _, listing := range listings {
		b.WriteString(familyStyle.Render(listing.Family))
		b.WriteString(": ")
		revisions := make([]string, len(listing.Revisions))
		for i, revision := range listing.Revisions {
			revisions[i] = revision
			if listing.Built[revision] {
				revisions[i] = builtStyle.Render(revision + "*")
			}
		}
		b.WriteString(strings.Join(revisions, " "))
		if !listing.Supported {
			b.WriteString(" ")
			b.WriteString(mutedStyle.Render("(no recipe)"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
