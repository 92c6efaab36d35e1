package ppg

import "testing"

func TestEffectiveTracker(t *testing.T) {
	tr := NewEffectiveTracker(4)
	if hr, hrv := tr.Rates(); hr != 0 || hrv != 0 {
		t.Fatalf("empty Rates = %v, %v", hr, hrv)
	}

	tr.Record(true, false)
	tr.Record(true, true)
	tr.Record(false, false)
	tr.Record(true, true)
	if hr, hrv := tr.Rates(); hr != 0.75 || hrv != 0.5 {
		t.Fatalf("Rates = %v, %v; want 0.75, 0.5", hr, hrv)
	}

	// The oldest window falls out.
	tr.Record(false, true)
	if tr.Len() != 4 {
		t.Fatalf("Len = %d, want 4", tr.Len())
	}
	if hr, hrv := tr.Rates(); hr != 0.5 || hrv != 0.75 {
		t.Fatalf("Rates = %v, %v; want 0.5, 0.75", hr, hrv)
	}

	tr.Reset()
	if tr.Len() != 0 {
		t.Fatalf("Len after Reset = %d", tr.Len())
	}
}
