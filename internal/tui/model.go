// Package tui is the live terminal monitor: the hardware tree with
// current values, refreshed once per tick, with pinned sensors shown in
// a header line.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/report"
)

// PinSuffix is the settings suffix marking a pinned sensor.
const PinSuffix = "tray"

type tickMsg time.Time

type updatedMsg struct {
	err error
}

type rescannedMsg struct {
	err error
}

// row is one line of the tree: a node header or a sensor.
type row struct {
	depth  int
	node   *report.NodeInfo
	sensor *report.SensorInfo
}

// Model is the bubbletea model of the monitor.
type Model struct {
	computer *hardware.Computer
	settings hardware.Settings
	interval time.Duration
	onTick   func(*hardware.Computer) error

	nodes  []report.NodeInfo
	rows   []row
	pinned map[string]bool

	cursor int // index into rows, always a sensor row when any exist
	offset int
	width  int
	height int
	paused bool
	err    error
}

// Option configures a Model.
type Option func(*Model)

// WithTickHook runs fn after every hardware update, for
// example to record samples.
func WithTickHook(fn func(*hardware.Computer) error) Option {
	return func(m *Model) { m.onTick = fn }
}

// NewModel returns a monitor over an opened computer. settings may be
// nil, in which case pins are kept for the session only.
func NewModel(c *hardware.Computer, settings hardware.Settings, interval time.Duration, opts ...Option) Model {
	m := Model{
		computer: c,
		settings: settings,
		interval: interval,
		pinned:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(m.interval), update(m.computer, m.onTick))
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func update(c *hardware.Computer, hook func(*hardware.Computer) error) tea.Cmd {
	return func() tea.Msg {
		err := c.Update()
		if hook != nil {
			if herr := hook(c); herr != nil && err == nil {
				err = herr
			}
		}
		return updatedMsg{err: err}
	}
}

// rescan asks every group to look for hardware that appeared or vanished
func rescan(c *hardware.Computer) tea.Cmd {
	return func() tea.Msg {
		return rescannedMsg{err: c.Rescan()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "k", "up":
			m.move(-1)
		case "j", "down":
			m.move(1)
		case "p":
			m.togglePin()
			m.refresh()
		case " ":
			m.paused = !m.paused
		case "r":
			return m, rescan(m.computer)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
	case tickMsg:
		if m.paused {
			return m, tick(m.interval)
		}
		return m, tea.Batch(tick(m.interval), update(m.computer, m.onTick))
	case updatedMsg:
		m.err = msg.err
		m.refresh()
	case rescannedMsg:
		m.err = msg.err
		m.refresh()
	}
	return m, nil
}

// refresh rebuilds the rows from the current tree, keeping the cursor
// on the same sensor when it still exists
func (m *Model) refresh() {
	var selected string
	if s := m.selected(); s != nil {
		selected = s.ID
	}

	m.nodes = report.Collect(m.computer, m.isPinned)
	m.rows = nil
	for i := range m.nodes {
		m.appendRows(&m.nodes[i], 0)
	}

	m.cursor = -1
	first := -1
	for i, r := range m.rows {
		if r.sensor == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		if r.sensor.ID == selected {
			m.cursor = i
			break
		}
	}
	if m.cursor < 0 {
		m.cursor = first
	}
	m.clampOffset()
}

func (m *Model) appendRows(n *report.NodeInfo, depth int) {
	m.rows = append(m.rows, row{depth: depth, node: n})
	for i := range n.Sensors {
		m.rows = append(m.rows, row{depth: depth + 1, sensor: &n.Sensors[i]})
	}
	for i := range n.Children {
		m.appendRows(&n.Children[i], depth+1)
	}
}

func (m *Model) selected() *report.SensorInfo {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].sensor
}

// move steps the cursor over sensor rows, skipping node headers
func (m *Model) move(delta int) {
	if m.cursor < 0 {
		return
	}
	for i := m.cursor + delta; i >= 0 && i < len(m.rows); i += delta {
		if m.rows[i].sensor != nil {
			m.cursor = i
			break
		}
	}
	m.clampOffset()
}

func (m *Model) visibleRows() int {
	// title, pinned line, panel border and help
	n := m.height - 6
	if n < 1 {
		return 1
	}
	return n
}

func (m *Model) clampOffset() {
	if m.height == 0 {
		m.offset = 0
		return
	}
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m *Model) isPinned(s *hardware.Sensor) bool {
	key := hardware.SettingKey(s.ID(), PinSuffix)
	if v, ok := m.pinned[key]; ok {
		return v
	}
	v := false
	if m.settings != nil {
		if value, ok, err := m.settings.Get(key); err == nil && ok {
			v = value == "true"
		}
	}
	m.pinned[key] = v
	return v
}

func (m *Model) togglePin() {
	s := m.selected()
	if s == nil {
		return
	}
	id, err := hardware.Parse(s.ID)
	if err != nil {
		m.err = err
		return
	}
	key := hardware.SettingKey(id, PinSuffix)
	pin := !s.Pinned
	if m.settings != nil {
		if pin {
			err = m.settings.Set(key, "true")
		} else {
			err = m.settings.Delete(key)
		}
		if err != nil {
			m.err = fmt.Errorf("failed to save pin: %w", err)
			return
		}
	}
	m.pinned[key] = pin
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderTitle())
	b.WriteString("\n")
	b.WriteString(m.renderPinned())
	b.WriteString("\n")

	var lines []string
	visible := m.visibleRows()
	end := m.offset + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(m.rows[i], i == m.cursor))
	}
	if len(lines) == 0 {
		lines = append(lines, dimStyle.Render("No hardware found"))
	}
	panel := panelStyle.Width(max(m.width-2, 20)).Render(strings.Join(lines, "\n"))
	b.WriteString(panel)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select  p pin  r rescan  space pause  q quit"))
	return b.String()
}

func (m Model) renderTitle() string {
	sum := report.Summarize(m.nodes)
	title := titleStyle.Render("hwgod")
	stats := labelStyle.Render(fmt.Sprintf("  %d hardware, %d sensors", sum.Hardware, sum.Sensors))
	if sum.TempMax != nil {
		stats += labelStyle.Render("  max ") + tempColor(*sum.TempMax).Render(report.FormatValue(hardware.SensorTemperature, *sum.TempMax))
	}
	if m.paused {
		stats += "  " + warnStyle.Render("PAUSED")
	}
	if m.err != nil {
		stats += "  " + critStyle.Render(m.err.Error())
	}
	return title + stats
}

func (m Model) renderPinned() string {
	var parts []string
	for _, r := range m.rows {
		if r.sensor == nil || !r.sensor.Pinned {
			continue
		}
		parts = append(parts, labelStyle.Render(r.sensor.Name+" ")+m.styledValue(r.sensor))
	}
	if len(parts) == 0 {
		return dimStyle.Render("No pinned sensors")
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderRow(r row, selected bool) string {
	indent := strings.Repeat("  ", r.depth)
	if r.node != nil {
		return indent + nodeStyle.Render(r.node.Name) + dimStyle.Render(" "+r.node.ID)
	}

	s := r.sensor
	marker := "  "
	if s.Pinned {
		marker = "* "
	}
	name := fmt.Sprintf("%s%s%-32s", indent, marker, s.Name)
	if selected {
		return selectedStyle.Render(name) + " " + m.styledValue(s)
	}
	return valueStyle.Render(name) + " " + m.styledValue(s)
}

func (m Model) styledValue(s *report.SensorInfo) string {
	text := s.Display
	if s.Stale {
		text += " (stale)"
	}
	if s.Value == nil {
		return dimStyle.Render(text)
	}

	var style lipgloss.Style
	switch s.Type {
	case hardware.SensorTemperature.String():
		style = tempColor(*s.Value)
	case hardware.SensorLoad.String():
		style = loadColor(*s.Value)
	default:
		style = valueStyle
	}
	if s.Stale {
		style = dimStyle
	}
	return style.Render(text)
}

// Run starts the monitor in the alternate screen and blocks until the
// user quits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
