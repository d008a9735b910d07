package models

import "time"

// Rating holds the sub-scores a rater assigns to one answer
type Rating struct {
	Specificity        float64 `json:"specificity"`
	Depth              float64 `json:"depth"`
	BehavioralEvidence float64 `json:"behavioralEvidence"`
	Novelty            float64 `json:"novelty"`
	OverallScore       float64 `json:"overallScore"`
}

// Clamp returns a copy with every field bounded to [lo, hi]
func (r Rating) Clamp(lo, hi float64) Rating {
	return Rating{
		Specificity:        Clamp(r.Specificity, lo, hi),
		Depth:              Clamp(r.Depth, lo, hi),
		BehavioralEvidence: Clamp(r.BehavioralEvidence, lo, hi),
		Novelty:            Clamp(r.Novelty, lo, hi),
		OverallScore:       Clamp(r.OverallScore, lo, hi),
	}
}

// Scale returns a copy with every field multiplied by f
func (r Rating) Scale(f float64) Rating {
	return Rating{
		Specificity:        r.Specificity * f,
		Depth:              r.Depth * f,
		BehavioralEvidence: r.BehavioralEvidence * f,
		Novelty:            r.Novelty * f,
		OverallScore:       r.OverallScore * f,
	}
}

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RatingEvent describes a rating that was folded into the ledger
type RatingEvent struct {
	SessionID string     `json:"session_id"`
	Question  Question   `json:"question"`
	Rating    Rating     `json:"rating"`
	Retired   []Question `json:"retired,omitempty"`
	RatedAt   time.Time  `json:"rated_at"`
}

// SessionInfo identifies a call session
type SessionInfo struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// SessionSummary is the final state of a call session
type SessionSummary struct {
	SessionInfo
	EndedAt   time.Time  `json:"ended_at"`
	Asked     []int      `json:"asked"`
	Answered  []int      `json:"answered"`
	Questions []Question `json:"questions"`
}
