package display

import "testing"

func TestMinutes(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0.365551, "21.93"},
		{0.415203626190245, "24.91"},
		{1.5, "90"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := Minutes(tt.hours).String(); got != tt.want {
			t.Errorf("Minutes(%v) = %s, want %s", tt.hours, got, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0, "0 menit"},
		{0.001, "1 menit"},
		{0.365551, "22 menit"},
		{1, "1 jam"},
		{1.5, "1 jam 30 menit"},
		{2.999, "3 jam"},
		{-0.5, "0 menit"},
	}
	for _, tt := range tests {
		if got := Text(tt.hours); got != tt.want {
			t.Errorf("Text(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(47.75821460754068); got != 47.76 {
		t.Errorf("Percent() = %v, want 47.76", got)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(0.5)
	if d.Hours != 0.5 || d.Minutes != 30 || d.Text != "30 menit" {
		t.Errorf("Duration(0.5) = %+v", d)
	}
}
