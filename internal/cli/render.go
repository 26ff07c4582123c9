package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/limbo/studytrack/internal/stats"
	"github.com/limbo/studytrack/internal/synchronizer"
	"github.com/limbo/studytrack/pkg/entity"
	"gopkg.in/yaml.v3"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var errUnknownFormat = errors.New("unknown output format")

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func levelStyle(level synchronizer.Level) lipgloss.Style {
	switch level {
	case synchronizer.LevelSuccess:
		return successStyle
	case synchronizer.LevelWarning:
		return warningStyle
	case synchronizer.LevelError:
		return errorStyle
	default:
		return infoStyle
	}
}

// Notifier prints synchronizer notices as single styled lines.
type Notifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w}
}

func (n *Notifier) Notify(notice synchronizer.Notice) {
	line := levelStyle(notice.Level).Render("["+notice.Level.String()+"]") + " " + notice.Message
	if notice.Err != nil && notice.Level != synchronizer.LevelSuccess {
		line += " " + dimStyle.Render("("+notice.Err.Error()+")")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, line)
}

// cell pads s to a fixed column, cutting whatever doesn't fit on the first line.
func cell(width int, s string) string {
	return lipgloss.NewStyle().Width(width).PaddingRight(1).MaxHeight(1).Render(s)
}

// RenderSessions writes one row per session, most recent first, marking the unsynced ones.
func RenderSessions(w io.Writer, sessions []entity.Session, loc *time.Location) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no sessions yet"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(
		cell(42, "ID")+cell(18, "STARTED")+cell(20, "SUBJECT")+cell(12, "TIME")+"NOTE",
	))
	for _, s := range sessions {
		fmt.Fprintln(w, renderRow(s, loc))
	}
}

func renderRow(s entity.Session, loc *time.Location) string {
	id := s.ID.String()
	if !s.Synced {
		id = warningStyle.Render(id)
	}
	row := cell(42, id) +
		cell(18, s.StartedAt.In(loc).Format("2006-01-02 15:04")) +
		cell(20, s.Subject) +
		cell(12, stats.FormatMinutes(s.Minutes)) +
		s.Note
	if !s.Synced {
		row += " " + warningStyle.Render("(pending)")
	}
	return row
}

// RenderStats writes the report as text, json or yaml.
func RenderStats(w io.Writer, report entity.StatsReport, format string) error {
	switch format {
	case FormatJSON:
		raw, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.New("encoding stats error: " + err.Error())
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return errors.New("encoding stats error: " + err.Error())
		}
		return enc.Close()
	case FormatText, "":
		renderStatsText(w, report)
		return nil
	}
	return fmt.Errorf("%w: %q", errUnknownFormat, format)
}

func renderStatsText(w io.Writer, report entity.StatsReport) {
	o := report.Overall
	fmt.Fprintln(w, headerStyle.Render("Overall"))
	fmt.Fprintf(w, "  total      %s in %d sessions\n", stats.FormatMinutes(o.TotalMinutes), o.TotalSessions)
	fmt.Fprintf(w, "  per day    %s\n", stats.FormatMinutes(o.AverageMinutesPerDay))
	fmt.Fprintf(w, "  streak     %d days\n", o.ConsecutiveDays)
	if o.FavoriteSubject != "" {
		fmt.Fprintf(w, "  favorite   %s\n", o.FavoriteSubject)
	}

	if len(report.Subjects) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Subjects"))
		for _, s := range report.Subjects {
			fmt.Fprintf(w, "  %s%s %5.1f%%\n", cell(20, s.Subject), cell(12, stats.FormatMinutes(s.TotalMinutes)), s.Percentage)
		}
	}

	if len(report.Daily) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Daily"))
		peak := 0
		for _, d := range report.Daily {
			peak = max(peak, d.TotalMinutes)
		}
		for _, d := range report.Daily {
			fmt.Fprintf(w, "  %s %s %s\n", d.Date, cell(12, stats.FormatMinutes(d.TotalMinutes)), barStyle.Render(bar(d.TotalMinutes, peak)))
		}
	}
}

const barWidth = 30

func bar(minutes, peak int) string {
	if peak == 0 || minutes == 0 {
		return ""
	}
	n := max(1, minutes*barWidth/peak)
	return strings.Repeat("█", n)
}
