package blobstore

import (
	"testing"
	"time"
)

func TestBuildPath(t *testing.T) {
	date := time.Date(2026, time.March, 1, 10, 30, 0, 0, time.UTC)
	got := BuildPath("CIP-0042", "Informe de Evolución Clínica", date)
	want := "CIP-0042/informe_de_evoluci_n_cl_nica_cip_0042_01032026.pdf"
	if got != want {
		t.Errorf("BuildPath = %q, want %q", got, want)
	}
}

func TestBuildPath_Idempotent(t *testing.T) {
	date := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	a := BuildPath("cip9", "Receta Médica", date)
	b := BuildPath("cip9", "Receta Médica", date)
	if a != b {
		t.Errorf("expected identical paths, got %q and %q", a, b)
	}
}

func TestBuildPath_TimeOfDayIgnored(t *testing.T) {
	morning := time.Date(2026, time.May, 2, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, time.May, 2, 22, 45, 0, 0, time.UTC)
	if BuildPath("cip1", "doc", morning) != BuildPath("cip1", "doc", evening) {
		t.Error("expected same-day renders to share one address")
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Informe Clínico", "informe_cl_nico"},
		{"ABC123", "abc123"},
		{"a b.c/d", "a_b_c_d"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatDDMMYYYY(t *testing.T) {
	d := time.Date(2026, time.December, 9, 0, 0, 0, 0, time.UTC)
	if got := formatDDMMYYYY(d); got != "09122026" {
		t.Errorf("expected 09122026, got %s", got)
	}
}
