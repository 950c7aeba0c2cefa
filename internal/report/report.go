// Package report renders the hardware tree, SMART tables and the
// hardware journal for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sigreer/hwgod/internal/hardware"
)

type SensorInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Value   *float64 `json:"value"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Unit    string   `json:"unit,omitempty"`
	Stale   bool     `json:"stale,omitempty"`
	Pinned  bool     `json:"pinned,omitempty"`
	Display string   `json:"display"`
}

type NodeInfo struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	State    string       `json:"state"`
	Sensors  []SensorInfo `json:"sensors,omitempty"`
	Children []NodeInfo   `json:"children,omitempty"`
}

type Summary struct {
	Hardware int      `json:"hardware"`
	Sensors  int      `json:"sensors"`
	TempMin  *float64 `json:"temp_min"`
	TempMax  *float64 `json:"temp_max"`
	TempAvg  *float64 `json:"temp_avg"`
}

type Output struct {
	Hardware []NodeInfo `json:"hardware"`
	Summary  Summary    `json:"summary"`
}

// Collect snapshots every node and sensor of the computer. pinned
// reports whether a sensor is pinned; it may be nil.
func Collect(c *hardware.Computer, pinned func(*hardware.Sensor) bool) []NodeInfo {
	var out []NodeInfo
	for _, n := range c.Hardware() {
		out = append(out, collectNode(n, pinned))
	}
	return out
}

func collectNode(n *hardware.Node, pinned func(*hardware.Sensor) bool) NodeInfo {
	info := NodeInfo{
		ID:    n.ID().String(),
		Name:  n.Name(),
		Type:  n.Type().String(),
		State: n.State().String(),
	}
	for _, s := range n.Sensors() {
		info.Sensors = append(info.Sensors, sensorInfo(s, pinned))
	}
	for _, c := range n.Children() {
		info.Children = append(info.Children, collectNode(c, pinned))
	}
	return info
}

func sensorInfo(s *hardware.Sensor, pinned func(*hardware.Sensor) bool) SensorInfo {
	r := s.Snapshot()
	info := SensorInfo{
		ID:      s.ID().String(),
		Name:    s.Name(),
		Type:    s.Type().String(),
		Unit:    s.Type().Unit(),
		Stale:   r.Stale,
		Display: "-",
	}
	if r.Valid {
		v := r.Value
		info.Value = &v
		info.Display = FormatValue(s.Type(), v)
	}
	if r.Seen {
		lo, hi := r.Min, r.Max
		info.Min, info.Max = &lo, &hi
	}
	if pinned != nil {
		info.Pinned = pinned(s)
	}
	return info
}

// FormatValue renders a sensor value with its unit
func FormatValue(t hardware.SensorType, v float64) string {
	switch t {
	case hardware.SensorTemperature:
		return fmt.Sprintf("%.1f°C", v)
	case hardware.SensorLoad, hardware.SensorControl, hardware.SensorLevel:
		return fmt.Sprintf("%.1f%%", v)
	case hardware.SensorData:
		return humanize.IBytes(uint64(math.Max(v, 0) * (1 << 30)))
	case hardware.SensorSmallData:
		return humanize.IBytes(uint64(math.Max(v, 0) * (1 << 20)))
	case hardware.SensorRawValue:
		return humanize.Comma(int64(v))
	default:
		if unit := t.Unit(); unit != "" {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
		return fmt.Sprintf("%.2f", v)
	}
}

// PrintStatus writes the hardware tree as an indented table
func PrintStatus(w io.Writer, nodes []NodeInfo) {
	fmt.Fprintf(w, "%-40s %-34s %s\n", "SENSOR", "ID", "VALUE")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, n := range nodes {
		printNode(w, n, 0)
	}
}

func printNode(w io.Writer, n NodeInfo, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s [%s]\n", indent, n.Name, n.ID)
	for _, s := range n.Sensors {
		name := indent + "  " + s.Name
		if s.Pinned {
			name += " *"
		}
		value := s.Display
		if s.Stale {
			value += " (stale)"
		}
		fmt.Fprintf(w, "%-40s %-34s %s\n", name, s.ID, value)
	}
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

// Summarize counts nodes and sensors and aggregates temperatures
func Summarize(nodes []NodeInfo) Summary {
	var sum Summary
	var temps []float64
	var walk func(n NodeInfo)
	walk = func(n NodeInfo) {
		sum.Hardware++
		for _, s := range n.Sensors {
			sum.Sensors++
			if s.Type == hardware.SensorTemperature.String() && s.Value != nil {
				temps = append(temps, *s.Value)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	if len(temps) > 0 {
		min, max, total := temps[0], temps[0], 0.0
		for _, t := range temps {
			if t < min {
				min = t
			}
			if t > max {
				max = t
			}
			total += t
		}
		avg := total / float64(len(temps))
		sum.TempMin = &min
		sum.TempMax = &max
		sum.TempAvg = &avg
	}
	return sum
}

// PrintJSON writes the tree and its summary as indented JSON
func PrintJSON(w io.Writer, nodes []NodeInfo) error {
	if nodes == nil {
		nodes = []NodeInfo{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Output{Hardware: nodes, Summary: Summarize(nodes)})
}

// relativeTime renders t relative to now, falling back to a timestamp
// for anything older than a week
func relativeTime(t, now time.Time) string {
	if now.Sub(t) > 7*24*time.Hour {
		return t.Local().Format("2006-01-02 15:04:05")
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
