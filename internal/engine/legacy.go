package engine

import (
	"fmt"
	"math"
)

// Legacy scores review-connected businesses on review frequency,
// sentiment, and engagement. Attention requires corroboration: at least
// two signal families past their high tier. A single strong signal only
// softens, because each individual legacy signal is noisy.
type Legacy struct {
	cfg Config
}

// NewLegacy constructs the legacy_v1 engine.
func NewLegacy(cfg Config) *Legacy {
	return &Legacy{cfg: cfg.normalized()}
}

// Name returns the engine identifier.
func (e *Legacy) Name() string { return EngineLegacyV1 }

// Evaluate scores one snapshot.
func (e *Legacy) Evaluate(snap Snapshot) (Result, error) {
	if err := e.validate(snap); err != nil {
		return Result{}, err
	}

	reviewChange := pctChange(snap.CurrentReviews14d, snap.BaselineReviews14d)
	reviewDrop := clamp01(-reviewChange)
	sentimentDelta := snap.CurrentSentiment - snap.BaselineSentiment

	// Engagement is excluded entirely when the baseline is zero; there
	// is nothing to regress against.
	engagementScored := snap.BaselineEngagement > 0
	engagementDrop := 0.0
	if engagementScored {
		engagementDrop = clamp01(-pctChange(snap.CurrentEngagement, snap.BaselineEngagement))
	}

	var reasons []Reason
	highHits := 0

	if reviewDrop >= e.cfg.ReviewDropHigh {
		highHits++
		reasons = append(reasons, Reason{
			Code:   CodeReviewFreqDrop30,
			Detail: fmt.Sprintf("Review volume is down %.0f%% versus the baseline window.", reviewDrop*100),
			Delta:  -reviewDrop,
		})
	} else if reviewDrop >= e.cfg.ReviewDropLow {
		reasons = append(reasons, Reason{
			Code:   CodeReviewFreqDrop15,
			Detail: fmt.Sprintf("Review volume is down %.0f%% versus the baseline window.", reviewDrop*100),
			Delta:  -reviewDrop,
		})
	}

	if sentimentDelta <= -e.cfg.SentimentDropHigh {
		highHits++
		reasons = append(reasons, Reason{
			Code:   CodeSentimentDrop50,
			Detail: fmt.Sprintf("Average sentiment fell %.2f points versus baseline.", -sentimentDelta),
			Delta:  sentimentDelta,
		})
	} else if sentimentDelta <= -e.cfg.SentimentDropLow {
		reasons = append(reasons, Reason{
			Code:   CodeSentimentDrop25,
			Detail: fmt.Sprintf("Average sentiment fell %.2f points versus baseline.", -sentimentDelta),
			Delta:  sentimentDelta,
		})
	}

	if engagementScored {
		if engagementDrop >= e.cfg.EngagementDropHigh {
			highHits++
			reasons = append(reasons, Reason{
				Code:   CodeEngagementDrop30,
				Detail: fmt.Sprintf("Engagement is down %.0f%% versus the baseline window.", engagementDrop*100),
				Delta:  -engagementDrop,
			})
		} else if engagementDrop >= e.cfg.EngagementDropLow {
			reasons = append(reasons, Reason{
				Code:   CodeEngagementDrop15,
				Detail: fmt.Sprintf("Engagement is down %.0f%% versus the baseline window.", engagementDrop*100),
				Delta:  -engagementDrop,
			})
		}
	}

	status := StatusStable
	switch {
	case highHits >= 2:
		status = StatusAttention
	case highHits == 1:
		status = StatusSoftening
	case len(reasons) > 0:
		status = StatusWatch
	}

	reviewPenalty := roundPenalty(reviewDrop * 40)
	engagementPenalty := roundPenalty(engagementDrop * 30)
	sentimentPenalty := roundPenalty(math.Max(0, -sentimentDelta) * 30)
	raw := 100 - (reviewPenalty + engagementPenalty + sentimentPenalty)

	return Result{
		Status:  status,
		Reasons: reasons,
		Meta: Meta{
			Engine:    EngineLegacyV1,
			Direction: e.direction(reviewChange),
			MRIScore:  clampScore(raw),
			MRIRaw:    raw,
			Legacy: &LegacyMeta{
				ReviewDrop:        reviewDrop,
				EngagementDrop:    engagementDrop,
				SentimentDelta:    sentimentDelta,
				ReviewPenalty:     reviewPenalty,
				EngagementPenalty: engagementPenalty,
				SentimentPenalty:  sentimentPenalty,
			},
		},
	}, nil
}

func (e *Legacy) direction(reviewChange float64) Direction {
	switch {
	case reviewChange > e.cfg.DirectionBand:
		return DirectionUp
	case reviewChange < -e.cfg.DirectionBand:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

func (e *Legacy) validate(snap Snapshot) error {
	if !validNumber(snap.BaselineReviews14d) || snap.BaselineReviews14d < 0 {
		return fmt.Errorf("%w: baseline review count %v", ErrInvalidInput, snap.BaselineReviews14d)
	}
	if !validNumber(snap.CurrentReviews14d) || snap.CurrentReviews14d < 0 {
		return fmt.Errorf("%w: current review count %v", ErrInvalidInput, snap.CurrentReviews14d)
	}
	if !validFraction(snap.BaselineSentiment) || !validFraction(snap.CurrentSentiment) {
		return fmt.Errorf("%w: sentiment averages must be within [0,1]", ErrInvalidInput)
	}
	if !validFraction(snap.BaselineEngagement) || !validFraction(snap.CurrentEngagement) {
		return fmt.Errorf("%w: engagement averages must be within [0,1]", ErrInvalidInput)
	}
	return nil
}

var _ Engine = (*Legacy)(nil)
