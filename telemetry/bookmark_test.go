package telemetry

import "testing"

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_FirstMovement(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if bms := bd.Check(WindowStats{WindowEnd: 50}); hasBookmark(bms, BookmarkFirstMovement) {
		t.Error("no movement yet, no bookmark expected")
	}
	bms := bd.Check(WindowStats{WindowEnd: 100, Chains: 3, Moved: 1})
	if !hasBookmark(bms, BookmarkFirstMovement) {
		t.Fatal("expected first_movement bookmark")
	}
	if bms := bd.Check(WindowStats{WindowEnd: 150, Chains: 3, Moved: 1}); hasBookmark(bms, BookmarkFirstMovement) {
		t.Error("first_movement should fire once")
	}
}

func TestBookmarkDetector_MovementSurge(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 1; i <= 5; i++ {
		bd.Check(WindowStats{WindowEnd: i * 50, Chains: 4, Moved: 2})
	}

	bms := bd.Check(WindowStats{WindowEnd: 300, Chains: 10, Moved: 9})
	if !hasBookmark(bms, BookmarkMovementSurge) {
		t.Error("expected movement_surge bookmark")
	}

	bms = bd.Check(WindowStats{WindowEnd: 350, Chains: 4, Moved: 2})
	if hasBookmark(bms, BookmarkMovementSurge) {
		t.Error("ordinary window should not surge")
	}
}

func TestBookmarkDetector_PressureSpike(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 1; i <= 4; i++ {
		bd.Check(WindowStats{WindowEnd: i * 50, PressureStd: 1})
	}
	bms := bd.Check(WindowStats{WindowEnd: 250, PressureStd: 10})
	if !hasBookmark(bms, BookmarkPressureSpike) {
		t.Error("expected pressure_spike bookmark")
	}
}

func TestBookmarkDetector_FlowStrain(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 1; i <= 4; i++ {
		bd.Check(WindowStats{WindowEnd: i * 50, FlowRoundsMean: 3, FlowRoundsMax: 4})
	}
	bms := bd.Check(WindowStats{WindowEnd: 250, FlowRoundsMean: 5, FlowRoundsMax: 40})
	if !hasBookmark(bms, BookmarkFlowStrain) {
		t.Error("expected flow_strain bookmark")
	}
}

func TestBookmarkDetector_Settled(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Quiet windows before any movement never count.
	for i := 0; i < 6; i++ {
		if bms := bd.Check(WindowStats{}); hasBookmark(bms, BookmarkSettled) {
			t.Fatal("settled without prior movement")
		}
	}

	bd.Check(WindowStats{WindowEnd: 400, Chains: 2, Moved: 1})
	var fired int
	for i := 1; i <= 8; i++ {
		if hasBookmark(bd.Check(WindowStats{WindowEnd: 400 + i*50}), BookmarkSettled) {
			fired++
			if i != 5 {
				t.Errorf("settled fired after %d quiet windows, want 5", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("settled fired %d times, want 1", fired)
	}
}
