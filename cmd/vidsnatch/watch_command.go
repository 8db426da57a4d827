package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"vidsnatch/internal/api"
	"vidsnatch/internal/jobs"
)

const (
	watchRequestTimeout = 5 * time.Second
	watchMinBarWidth    = 10
	watchMaxBarWidth    = 40
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	watchSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

type watchModel struct {
	client    *api.Client
	address   string
	interval  time.Duration
	downloads []api.Download
	cursor    int
	width     int
	bar       progress.Model
	message   string
	err       error
	updatedAt time.Time
}

type watchLoadedMsg struct {
	downloads []api.Download
	err       error
}

type watchTickMsg time.Time

type watchActionMsg struct {
	message string
	err     error
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive view of running downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdinIsTTY() {
				return errors.New("watch requires an interactive terminal (TTY); use `vidsnatch events --follow` instead")
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if _, err := client.Status(cmd.Context()); err != nil {
				return wrapServerError(err, client.BaseURL())
			}
			p := tea.NewProgram(newWatchModel(client, interval), tea.WithAltScreen())
			final, err := p.Run()
			if err != nil {
				return err
			}
			if m, ok := final.(watchModel); ok && m.err != nil {
				return wrapServerError(m.err, client.BaseURL())
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Refresh interval")
	return cmd
}

func stdinIsTTY() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newWatchModel(client *api.Client, interval time.Duration) watchModel {
	if interval <= 0 {
		interval = time.Second
	}
	address := ""
	if client != nil {
		address = client.BaseURL()
	}
	return watchModel{
		client:   client,
		address:  address,
		interval: interval,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(watchMaxBarWidth), progress.WithoutPercentage()),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(loadDownloadsCmd(m.client), watchTick(m.interval))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-60, watchMinBarWidth), watchMaxBarWidth)
		return m, nil
	case watchTickMsg:
		return m, tea.Batch(loadDownloadsCmd(m.client), watchTick(m.interval))
	case watchLoadedMsg:
		if msg.err != nil {
			if api.IsUnavailable(msg.err) {
				m.err = msg.err
				return m, tea.Quit
			}
			m.message = "error: " + msg.err.Error()
			return m, nil
		}
		m.downloads = msg.downloads
		m.updatedAt = time.Now()
		if m.cursor >= len(m.downloads) {
			m.cursor = max(len(m.downloads)-1, 0)
		}
		return m, nil
	case watchActionMsg:
		if msg.err != nil {
			m.message = "error: " + msg.err.Error()
		} else {
			m.message = msg.message
		}
		return m, loadDownloadsCmd(m.client)
	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m watchModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.downloads)-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		return m, loadDownloadsCmd(m.client)
	}

	selected, ok := m.selected()
	if !ok {
		return m, nil
	}
	status := jobs.Status(selected.Status)
	switch msg.String() {
	case "c":
		if status.Terminal() {
			m.message = "download is not active"
			return m, nil
		}
		return m, watchActionCmd(m.client, "Cancelled "+selected.Title, func(ctx context.Context, c *api.Client) error {
			return c.Cancel(ctx, selected.DownloadID)
		})
	case "t":
		if !status.Retryable() {
			m.message = "only failed or cancelled downloads can be retried"
			return m, nil
		}
		return m, watchActionCmd(m.client, "Retrying "+selected.Title, func(ctx context.Context, c *api.Client) error {
			_, err := c.Retry(ctx, selected.DownloadID)
			return err
		})
	case "x":
		if status != jobs.StatusCompleted {
			m.message = "only completed downloads can be cleared"
			return m, nil
		}
		return m, watchActionCmd(m.client, "Cleared "+selected.Title, func(ctx context.Context, c *api.Client) error {
			return c.Clear(ctx, selected.DownloadID)
		})
	}
	return m, nil
}

func (m watchModel) selected() (api.Download, bool) {
	if m.cursor < 0 || m.cursor >= len(m.downloads) {
		return api.Download{}, false
	}
	return m.downloads[m.cursor], true
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("VidSnatch downloads"))
	if m.address != "" {
		b.WriteString(" " + watchMutedStyle.Render(m.address))
	}
	b.WriteString("\n\n")

	if len(m.downloads) == 0 {
		b.WriteString(watchMutedStyle.Render("No downloads yet"))
		b.WriteString("\n")
	}
	for i, d := range m.downloads {
		title := d.Title
		if i == m.cursor {
			title = watchSelStyle.Render("> " + title)
		} else {
			title = "  " + title
		}
		b.WriteString(title)
		b.WriteString("\n    ")
		b.WriteString(m.bar.ViewAs(d.Percent / 100))
		b.WriteString(" ")
		b.WriteString(watchStatusStyle(d.Status).Render(statusLabel(d.Status)))
		detail := progressDetail(d.ProgressResponse)
		if d.Error != "" {
			detail = d.Error
		}
		if detail != "" {
			b.WriteString(" " + watchMutedStyle.Render(detail))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.message != "" {
		style := watchMutedStyle
		if strings.HasPrefix(m.message, "error:") {
			style = watchErrorStyle
		}
		b.WriteString(style.Render(m.message))
		b.WriteString("\n")
	}
	help := "↑/↓ select • c cancel • t retry • x clear • r refresh • q quit"
	if !m.updatedAt.IsZero() {
		help = fmt.Sprintf("%s • updated %s", help, m.updatedAt.Format(time.TimeOnly))
	}
	b.WriteString(watchMutedStyle.Render(help))
	return b.String()
}

func watchStatusStyle(status string) lipgloss.Style {
	switch jobStatusKind(status) {
	case statusOK:
		return watchOKStyle
	case statusError:
		return watchErrorStyle
	case statusWarn:
		return watchWarnStyle
	default:
		return lipgloss.NewStyle()
	}
}

func watchTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func loadDownloadsCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		if client == nil {
			return watchLoadedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), watchRequestTimeout)
		defer cancel()
		list, err := client.Jobs(ctx)
		return watchLoadedMsg{downloads: list, err: err}
	}
}

func watchActionCmd(client *api.Client, message string, fn func(context.Context, *api.Client) error) tea.Cmd {
	return func() tea.Msg {
		if client == nil {
			return watchActionMsg{err: errors.New("not connected")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), watchRequestTimeout)
		defer cancel()
		if err := fn(ctx, client); err != nil {
			return watchActionMsg{err: err}
		}
		return watchActionMsg{message: message}
	}
}
