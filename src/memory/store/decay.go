package store

import (
	"time"

	"github.com/engram-ai/engram/src/memory/model"
)

// Decay re-ranks memories by age, recency of access and access frequency.
// It is a monotone scoring function, not an eviction rule: no record is
// ever deleted because its effective importance decayed. The factors
// distinguish "rarely but recently useful" facts from "stale and ignored"
// ones without destructive forgetting.

// EffectiveImportance computes the decayed relevance of a record at the
// given instant, clamped to [0, 1].
func EffectiveImportance(rec model.MemoryRecord, now time.Time) float64 {
	ageDays := now.Sub(rec.CreatedAt).Hours() / 24

	ageFactor := 1.0
	if ageDays >= 30 {
		ageFactor = 1.0 - (ageDays-30)/365
		if ageFactor < 0.5 {
			ageFactor = 0.5
		}
	}

	recencyDays := ageDays
	if rec.LastAccessedAt != nil {
		recencyDays = now.Sub(*rec.LastAccessedAt).Hours() / 24
	}
	recencyFactor := 1.0
	if recencyDays >= 7 {
		recencyFactor = 1.0 - recencyDays/90
		if recencyFactor < 0.8 {
			recencyFactor = 0.8
		}
	}

	frequencyFactor := 1.0 + float64(rec.AccessCount)/20
	if frequencyFactor > 1.5 {
		frequencyFactor = 1.5
	}

	return model.ClampScore(rec.Importance * ageFactor * recencyFactor * frequencyFactor)
}
