package store

import (
	"testing"
	"time"

	"github.com/engram-ai/engram/src/memory/model"
)

func decayRecord(created time.Time, accessed *time.Time, accessCount int64, importance float64) model.MemoryRecord {
	return model.MemoryRecord{
		Importance:     importance,
		CreatedAt:      created,
		LastAccessedAt: accessed,
		AccessCount:    accessCount,
	}
}

func TestEffectiveImportanceFreshRecord(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	rec := decayRecord(now.Add(-24*time.Hour), nil, 0, 0.8)

	got := EffectiveImportance(rec, now)
	if got != 0.8 {
		t.Fatalf("fresh record should keep its importance, got %v", got)
	}
}

func TestEffectiveImportanceDecaysWithAge(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	prev := 1.0
	for _, days := range []int{10, 40, 100, 200, 400, 800} {
		created := now.AddDate(0, 0, -days)
		accessed := now // recent access isolates the age factor
		got := EffectiveImportance(decayRecord(created, &accessed, 0, 1.0), now)
		if got > prev {
			t.Fatalf("decay not monotone: %v days gives %v > %v", days, got, prev)
		}
		prev = got
	}

	// Age factor floors at 0.5 no matter how old.
	ancient := decayRecord(now.AddDate(-20, 0, 0), &now, 0, 1.0)
	if got := EffectiveImportance(ancient, now); got < 0.4 {
		t.Fatalf("age floor violated: %v", got)
	}
}

func TestEffectiveImportanceRecency(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	created := now.AddDate(0, 0, -10)

	recent := now.AddDate(0, 0, -2)
	stale := now.AddDate(0, 0, -60)

	fresh := EffectiveImportance(decayRecord(created, &recent, 0, 1.0), now)
	old := EffectiveImportance(decayRecord(created, &stale, 0, 1.0), now)
	if fresh != 1.0 {
		t.Fatalf("access within a week should not decay, got %v", fresh)
	}
	if old >= fresh {
		t.Fatalf("stale access should decay: %v >= %v", old, fresh)
	}
	if old < 0.8 {
		t.Fatalf("recency floor violated: %v", old)
	}
}

func TestEffectiveImportanceFrequencyBoost(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	// Old enough that the boost has headroom below the clamp.
	created := now.AddDate(0, 0, -400)
	accessed := now

	never := EffectiveImportance(decayRecord(created, &accessed, 0, 0.6), now)
	sometimes := EffectiveImportance(decayRecord(created, &accessed, 4, 0.6), now)
	atCap := EffectiveImportance(decayRecord(created, &accessed, 10, 0.6), now)
	constantly := EffectiveImportance(decayRecord(created, &accessed, 1000, 0.6), now)

	if sometimes <= never || atCap <= sometimes {
		t.Fatalf("frequent access should boost: %v, %v, %v", never, sometimes, atCap)
	}
	// The boost caps at 1.5x: 10 accesses and 1000 score the same.
	if constantly != atCap {
		t.Fatalf("frequency boost not capped: %v vs %v", constantly, atCap)
	}
}

func TestEffectiveImportanceClamped(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	accessed := now

	// Max boost on a fresh, maximally important record would exceed 1.
	rec := decayRecord(now.Add(-time.Hour), &accessed, 500, 1.0)
	if got := EffectiveImportance(rec, now); got != 1.0 {
		t.Fatalf("effective importance must clamp to 1, got %v", got)
	}

	if got := EffectiveImportance(decayRecord(now, &accessed, 0, 0), now); got != 0 {
		t.Fatalf("zero importance stays zero, got %v", got)
	}
}
