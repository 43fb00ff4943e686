package derive

import (
	"math"
)

// Influence blend weights when no direct quality score is supplied.
const (
	influenceFollowersWeight  = 0.4
	influenceEngagementWeight = 0.5
	influenceCredibilityWeight = 0.1
)

// Credibility signal weights, renormalized over the signals actually present.
const (
	credibilityEngagementWeight  = 0.45
	credibilityRatioWeight       = 0.15
	credibilityFakeWeight        = 0.25
	credibilityConsistencyWeight = 0.15

	// Comment-to-like ratio considered healthy; deviations are penalized
	// progressively up to 40 points at 200% deviation.
	commentRatioTarget  = 0.10
	commentRatioMaxDev  = 2.0
	commentRatioPenalty = 0.40

	// Posts per week at or above this rate counts as fully consistent.
	consistencyTargetPerWeek = 3.0
)

// View-estimate coefficients. The reel back-solve inverts this formula, so
// the two must stay in lockstep.
const (
	reachLikesCoeff       = 5.0
	reachCommentsCoeff    = 20.0
	reelViewLikesCoeff    = 4.2
	reelViewCommentsCoeff = 18.0

	commentLikeRatioFloor = 0.005
	commentLikeRatioCeil  = 0.5
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// logScale maps v onto [1,10] by log-interpolating between min and max.
// Values at or below min map to 1, at or above max to 10.
func logScale(v, min, max float64) float64 {
	if v <= min {
		return 1
	}
	if v >= max {
		return 10
	}
	return 1 + 9*(math.Log(v)-math.Log(min))/(math.Log(max)-math.Log(min))
}

// influenceScore computes the 1-10 influence score. A provider-supplied
// quality score in [0,1] scales linearly; otherwise a weighted blend of
// follower count, engagement rate, and credibility stands in.
func influenceScore(quality *float64, followers float64, erPct *float64, credibility *float64) *float64 {
	if quality != nil {
		score := 1 + 9*clamp(*quality, 0, 1)
		return &score
	}
	if followers <= 0 && erPct == nil {
		return nil
	}

	score := influenceFollowersWeight * logScale(followers, 1e3, 1e7)
	if erPct != nil {
		score += influenceEngagementWeight * logScale(*erPct, 0.5, 15)
	} else {
		score += influenceEngagementWeight * 1
	}
	if credibility != nil {
		score += influenceCredibilityWeight * clamp(*credibility, 0, 1) * 10
	}
	score = clamp(score, 1, 10)
	return &score
}

// estimatedReach projects post reach from interaction averages. A combined
// average-interactions field takes precedence over the likes/comments split.
func estimatedReach(avgInteractions, avgLikes, avgComments *float64) *float64 {
	if avgInteractions != nil {
		reach := reachLikesCoeff * *avgInteractions
		return &reach
	}
	if avgLikes == nil && avgComments == nil {
		return nil
	}
	reach := reachLikesCoeff*deref(avgLikes) + reachCommentsCoeff*deref(avgComments)
	return &reach
}

// estimatedReelViews projects reel/video views from overall interaction
// averages. Zero inputs yield zero, never a fabricated positive number;
// wholly absent inputs yield nil.
func estimatedReelViews(avgLikes, avgComments *float64) *float64 {
	if avgLikes == nil && avgComments == nil {
		return nil
	}
	views := reelViewLikesCoeff*deref(avgLikes) + reelViewCommentsCoeff*deref(avgComments)
	if views < 0 {
		views = 0
	}
	return &views
}

// reelAveragesFromPosts computes mean likes/comments over the most recent
// video-like posts. Requires at least 3 such posts among the last 20.
func reelAveragesFromPosts(raw RawPayload) (likes, comments *float64, ok bool) {
	posts, found := fieldRecentPosts.List(raw)
	if !found {
		return nil, nil, false
	}

	var likeSum, commentSum float64
	count := 0
	for _, item := range posts {
		post, isObj := item.(map[string]any)
		if !isObj || !isVideoLike(post) {
			continue
		}
		l, lok := postCount(post, "likes", "like_count", "likesCount")
		c, cok := postCount(post, "comments", "comment_count", "commentsCount")
		if !lok && !cok {
			continue
		}
		likeSum += l
		commentSum += c
		count++
		if count == 20 {
			break
		}
	}
	if count < 3 {
		return nil, nil, false
	}
	avgL := likeSum / float64(count)
	avgC := commentSum / float64(count)
	return &avgL, &avgC, true
}

// reelBackSolve inverts the view-estimate formula: with ratio r = comments
// per like, views = 4.2*L + 18*(r*L), so L = views/(4.2 + 18r). The observed
// ratio is clamped to [0.005, 0.5] to keep degenerate payloads from
// producing absurd splits.
func reelBackSolve(estViews, avgLikes, avgComments *float64) (likes, comments *float64) {
	if estViews == nil || *estViews <= 0 {
		return nil, nil
	}
	if avgLikes == nil || *avgLikes <= 0 {
		return nil, nil
	}
	ratio := clamp(deref(avgComments)/(*avgLikes), commentLikeRatioFloor, commentLikeRatioCeil)
	l := *estViews / (reelViewLikesCoeff + reelViewCommentsCoeff*ratio)
	c := ratio * l
	return &l, &c
}

// credibilitySignals carries the optional inputs to the credibility blend.
type credibilitySignals struct {
	engagementRatePct *float64
	commentLikeRatio  *float64
	fakeFollowerFrac  *float64
	postsPerWeek      *float64
}

// credibilityScore blends up to four independently optional signals into a
// [0,1] score, renormalizing the weights over the signals present. With no
// signals at all the result is nil rather than a defaulted number.
func credibilityScore(signals credibilitySignals) *float64 {
	var weighted, totalWeight float64

	if signals.engagementRatePct != nil {
		sub := logScale(*signals.engagementRatePct, 0.5, 15) / 10
		weighted += credibilityEngagementWeight * sub
		totalWeight += credibilityEngagementWeight
	}
	if signals.commentLikeRatio != nil {
		deviation := math.Abs(*signals.commentLikeRatio-commentRatioTarget) / commentRatioTarget
		penalty := commentRatioPenalty * math.Min(deviation, commentRatioMaxDev) / commentRatioMaxDev
		weighted += credibilityRatioWeight * (1 - penalty)
		totalWeight += credibilityRatioWeight
	}
	if signals.fakeFollowerFrac != nil {
		sub := 1 - clamp(*signals.fakeFollowerFrac, 0, 1)
		weighted += credibilityFakeWeight * sub
		totalWeight += credibilityFakeWeight
	}
	if signals.postsPerWeek != nil {
		sub := clamp(*signals.postsPerWeek/consistencyTargetPerWeek, 0, 1)
		weighted += credibilityConsistencyWeight * sub
		totalWeight += credibilityConsistencyWeight
	}

	if totalWeight == 0 {
		return nil
	}
	score := weighted / totalWeight
	return &score
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
