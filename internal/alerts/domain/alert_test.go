package alerts

import "testing"

func TestBatterySeverity(t *testing.T) {
	cases := []struct {
		name    string
		percent float64
		floor   float64
		want    string
	}{
		{"at floor", 20, 20, SeverityWarning},
		{"just above half floor", 10.5, 20, SeverityWarning},
		{"at half floor", 10, 20, SeverityCritical},
		{"below half floor", 4, 20, SeverityCritical},
		{"zero", 0, 20, SeverityCritical},
	}
	for _, tc := range cases {
		if got := BatterySeverity(tc.percent, tc.floor); got != tc.want {
			t.Errorf("%s: BatterySeverity(%v, %v) = %s, want %s", tc.name, tc.percent, tc.floor, got, tc.want)
		}
	}
}

func TestDeadLetterSeverity(t *testing.T) {
	if got := DeadLetterSeverity(9, 10, 50); got != "" {
		t.Fatalf("below warning band should be clean, got %q", got)
	}
	if got := DeadLetterSeverity(10, 10, 50); got != SeverityWarning {
		t.Fatalf("warning band: got %q", got)
	}
	if got := DeadLetterSeverity(49, 10, 50); got != SeverityWarning {
		t.Fatalf("top of warning band: got %q", got)
	}
	if got := DeadLetterSeverity(50, 10, 50); got != SeverityCritical {
		t.Fatalf("critical band: got %q", got)
	}
}

func TestAlertValidate(t *testing.T) {
	alert := Alert{
		ID:       NewAlertID(),
		TenantID: "tenant-a",
		Type:     TypeLowBattery,
		Severity: SeverityWarning,
		Status:   StatusOpen,
	}
	if err := alert.Validate(); err != nil {
		t.Fatalf("valid alert rejected: %v", err)
	}

	bad := alert
	bad.Type = "MYSTERY"
	if err := bad.Validate(); err == nil {
		t.Fatal("invalid type accepted")
	}
	bad = alert
	bad.TenantID = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("empty tenant accepted")
	}
}

func TestAlertActive(t *testing.T) {
	if !(Alert{Status: StatusOpen}).Active() {
		t.Fatal("open should be active")
	}
	if !(Alert{Status: StatusAcknowledged}).Active() {
		t.Fatal("acknowledged should be active")
	}
	if (Alert{Status: StatusResolved}).Active() {
		t.Fatal("resolved should not be active")
	}
}
