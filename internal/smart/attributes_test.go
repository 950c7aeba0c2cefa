package smart

import (
	"testing"

	"github.com/sigreer/hwgod/internal/ata"
)

func TestAttributeName(t *testing.T) {
	if got := AttributeName(AttrPowerOnHours); got != "Power-On Hours" {
		t.Errorf("AttributeName(9) = %q", got)
	}
	if got := AttributeName(0x42); got != "Unknown Attribute (42)" {
		t.Errorf("AttributeName(0x42) = %q", got)
	}
}

func TestJoin(t *testing.T) {
	attrs := sampleAttributes()
	var list []ata.DriveAttributeValue
	for _, a := range attrs.Attributes {
		if a.ID != 0 {
			list = append(list, a)
		}
	}
	th := sampleThresholds()

	entries := Join(list, th.Thresholds[:2])
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if !entries[0].HasThreshold || entries[0].Threshold != 10 {
		t.Errorf("reallocated entry = %+v, want threshold 10", entries[0])
	}
	if entries[1].HasThreshold {
		t.Errorf("power-on hours entry has a threshold: %+v", entries[1])
	}
	if entries[2].Name != "Temperature" {
		t.Errorf("entries[2].Name = %q", entries[2].Name)
	}
}

func TestTemperature(t *testing.T) {
	cases := []struct {
		name  string
		attrs []ata.DriveAttributeValue
		want  float64
		ok    bool
	}{
		{"none", nil, 0, false},
		{"temperature", []ata.DriveAttributeValue{{ID: AttrTemperature, Raw: [6]byte{38, 0, 22, 0, 51}}}, 38, true},
		{"airflow only", []ata.DriveAttributeValue{{ID: AttrAirflowTemperature, Raw: [6]byte{31}}}, 31, true},
		{"temperature wins", []ata.DriveAttributeValue{
			{ID: AttrAirflowTemperature, Raw: [6]byte{31}},
			{ID: AttrTemperature, Raw: [6]byte{40}},
		}, 40, true},
	}

	for _, c := range cases {
		got, ok := Temperature(c.attrs)
		if ok != c.ok || got != c.want {
			t.Errorf("%s: Temperature = %v, %v; want %v, %v", c.name, got, ok, c.want, c.ok)
		}
	}
}
