package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/reviewkit/reviewkit/internal/models"
)

// UI provides colored output and respects verbose mode.
type UI struct {
	Verbose bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// RatingColor returns the rating colored by severity.
func RatingColor(rating models.Rating) string {
	s := string(rating)
	switch rating {
	case models.RatingExcellent:
		return green(s)
	case models.RatingGood:
		return cyan(s)
	case models.RatingFair:
		return yellow(s)
	case models.RatingPoor, models.RatingError:
		return red(s)
	default:
		return s
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// ReviewResult renders one review as a readable block.
func (u *UI) ReviewResult(result *models.ReviewResult) {
	fmt.Fprintf(u.Out, "%s %s  %s %s  %s %.2fs\n",
		Cyan("Rating:"), RatingColor(result.Rating),
		Cyan("Model:"), result.ModelUsed,
		Cyan("Time:"), result.ExecutionTime)

	if len(result.Issues) > 0 {
		fmt.Fprintf(u.Out, "\n%s\n", Yellow("Issues:"))
		for _, issue := range result.Issues {
			fmt.Fprintf(u.Out, "  - %s\n", issue)
		}
	}
	if len(result.Suggestions) > 0 {
		fmt.Fprintf(u.Out, "\n%s\n", Green("Suggestions:"))
		for _, s := range result.Suggestions {
			fmt.Fprintf(u.Out, "  - %s\n", s)
		}
	}
	if result.Reasoning != "" {
		fmt.Fprintf(u.Out, "\n%s %s\n", Cyan("Reasoning:"), result.Reasoning)
	}
	if len(result.GuidelinesUsed) > 0 {
		fmt.Fprintf(u.Out, "\n%s %s\n", Cyan("Guidelines:"), strings.Join(result.GuidelinesUsed, ", "))
	}
}
