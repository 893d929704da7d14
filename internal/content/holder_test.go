package content

import "testing"

func TestHolder_GetReflectsLatestStore(t *testing.T) {
	h := NewHolder(Config{Activity: Activity{Enabled: true}})
	if !h.Get().Activity.Enabled {
		t.Fatalf("expected initial config to be enabled")
	}

	h.Store(Config{Activity: Activity{Enabled: false}})
	if h.Get().Activity.Enabled {
		t.Fatalf("expected stored config to be disabled")
	}
}

func TestHolder_SetEnabled_TogglesWithoutClobberingLevels(t *testing.T) {
	h := NewHolder(Config{
		Activity: Activity{Enabled: true},
		Levels:   []Level{{LevelID: 1, Name: "one"}},
	})

	h.SetEnabled(false)
	got := h.Get()
	if got.Activity.Enabled {
		t.Fatalf("expected activity to be disabled after SetEnabled(false)")
	}
	if len(got.Levels) != 1 || got.Levels[0].LevelID != 1 {
		t.Fatalf("expected levels to survive SetEnabled, got %+v", got.Levels)
	}
}

func TestHolder_Reload_FailureLeavesPreviousConfigInPlace(t *testing.T) {
	h := NewHolder(Config{Activity: Activity{Enabled: true, ActivityID: "original"}})

	_, err := h.Reload("/nonexistent/activity.json", "/nonexistent/levels.json", "/nonexistent/rewards.json")
	if err == nil {
		t.Fatalf("expected Reload to fail for nonexistent paths")
	}
	if got := h.Get(); got.Activity.ActivityID != "original" {
		t.Fatalf("expected previous config preserved on failed reload, got %+v", got.Activity)
	}
}
