package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sigreer/hwgod/internal/db"
	"github.com/sigreer/hwgod/internal/smart"
)

// SmartReport is the SMART view of one drive
type SmartReport struct {
	Identifier string         `json:"id"`
	Name       string         `json:"name"`
	Model      string         `json:"model,omitempty"`
	Firmware   string         `json:"firmware,omitempty"`
	Serial     string         `json:"serial,omitempty"`
	SizeBytes  uint64         `json:"size_bytes,omitempty"`
	Supported  bool           `json:"smart_supported"`
	Attributes []AttributeRow `json:"attributes"`
}

// AttributeRow is one attribute joined with its threshold
type AttributeRow struct {
	ID        byte   `json:"id"`
	Name      string `json:"name"`
	Flags     uint16 `json:"flags"`
	Value     byte   `json:"value"`
	Worst     byte   `json:"worst"`
	Threshold *byte  `json:"threshold,omitempty"`
	Raw       uint64 `json:"raw"`
}

// NewSmartReport builds the report of one drive
func NewSmartReport(id, name string, identity smart.Identity, size uint64, supported bool, entries []smart.Entry) SmartReport {
	r := SmartReport{
		Identifier: id,
		Name:       name,
		Model:      identity.Model,
		Firmware:   identity.Firmware,
		Serial:     identity.Serial,
		SizeBytes:  size,
		Supported:  supported,
		Attributes: make([]AttributeRow, 0, len(entries)),
	}
	for _, e := range entries {
		row := AttributeRow{
			ID:    e.ID,
			Name:  e.Name,
			Flags: e.Flags,
			Value: e.Value,
			Worst: e.Worst,
			Raw:   e.RawValue(),
		}
		if e.HasThreshold {
			t := e.Threshold
			row.Threshold = &t
		}
		r.Attributes = append(r.Attributes, row)
	}
	return r
}

// PrintSmart writes drive identity and the attribute table
func PrintSmart(w io.Writer, r SmartReport) {
	fmt.Fprintf(w, "%s [%s]\n", r.Name, r.Identifier)
	if r.Model != "" {
		fmt.Fprintf(w, "  Model:    %s\n", r.Model)
	}
	if r.Serial != "" {
		fmt.Fprintf(w, "  Serial:   %s\n", r.Serial)
	}
	if r.Firmware != "" {
		fmt.Fprintf(w, "  Firmware: %s\n", r.Firmware)
	}
	if r.SizeBytes > 0 {
		fmt.Fprintf(w, "  Capacity: %s\n", humanize.Bytes(r.SizeBytes))
	}
	if !r.Supported {
		fmt.Fprintln(w, "  SMART not supported")
		return
	}
	if len(r.Attributes) == 0 {
		fmt.Fprintln(w, "  No SMART attributes reported")
		return
	}

	fmt.Fprintf(w, "\n  %-4s %-36s %-6s %-5s %-5s %-6s %s\n", "ID", "ATTRIBUTE", "FLAGS", "VALUE", "WORST", "THRESH", "RAW")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 80))
	for _, a := range r.Attributes {
		thresh := "-"
		if a.Threshold != nil {
			thresh = fmt.Sprintf("%d", *a.Threshold)
		}
		fmt.Fprintf(w, "  %-4d %-36s 0x%04x %-5d %-5d %-6s %s\n",
			a.ID, a.Name, a.Flags, a.Value, a.Worst, thresh, humanize.Comma(int64(a.Raw)))
	}
}

// PrintSmartJSON writes the reports as indented JSON
func PrintSmartJSON(w io.Writer, reports []SmartReport) error {
	if reports == nil {
		reports = []SmartReport{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// PrintEvents writes journal entries, newest first
func PrintEvents(w io.Writer, events []*db.HardwareEvent, now time.Time) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No hardware events recorded")
		return
	}
	fmt.Fprintf(w, "%-20s %-16s %-28s %-10s %s\n", "WHEN", "EVENT", "ID", "SESSION", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, e := range events {
		session := e.Session
		if len(session) > 8 {
			session = session[:8]
		}
		fmt.Fprintf(w, "%-20s %-16s %-28s %-10s %s\n",
			relativeTime(e.Timestamp, now), e.EventType, e.Identifier, session, e.Name)
	}
}

// PrintDrives writes the drive inventory
func PrintDrives(w io.Writer, drives []*db.DriveRecord, now time.Time) {
	if len(drives) == 0 {
		fmt.Fprintln(w, "No drives recorded")
		return
	}
	fmt.Fprintf(w, "%-24s %-32s %-10s %-10s %s\n", "SERIAL", "MODEL", "SIZE", "LAST ID", "LAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, d := range drives {
		size := "-"
		if d.SizeBytes > 0 {
			size = humanize.Bytes(uint64(d.SizeBytes))
		}
		fmt.Fprintf(w, "%-24s %-32s %-10s %-10s %s\n",
			d.Serial, d.Model, size, d.Identifier, relativeTime(d.LastSeen, now))
	}
}
