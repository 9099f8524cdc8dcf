package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/lostsignal/bunnysync/internal/sync"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))

	errorLabel = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

func printSummary(w io.Writer, result *sync.SyncResult, err error) {
	if result == nil {
		return
	}

	status := green.Render("synced")
	switch {
	case err != nil:
		status = red.Render("failed")
	case !result.Changed():
		status = gray.Render("up to date")
	}

	fmt.Fprintf(w, "%s %s %s\n",
		cyan.Render(result.Destination),
		status,
		lightGray.Render(fmt.Sprintf("in %s", result.Duration.Round(time.Millisecond))),
	)
	fmt.Fprintf(w, "  uploaded %d (%s), deleted %d, unchanged %d\n",
		len(result.Uploaded),
		humanize.Bytes(uint64(result.BytesUploaded)),
		len(result.Deleted),
		result.Unchanged,
	)
	if err != nil {
		fmt.Fprintf(w, "  %s %v\n", errorLabel("error:"), err)
	}
}
