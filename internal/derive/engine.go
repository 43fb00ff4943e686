// Package derive turns raw, inconsistent provider payloads into the
// normalized ProfileMetrics document. Derivation is deterministic for a
// given payload except the synthetic growth history, which draws from an
// injectable random source. A failure in any single step degrades that
// metric to its documented fallback and never aborts the rest of the
// document.
package derive

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/sociallens/sociallens/internal/metrics"
	"github.com/sociallens/sociallens/internal/tables"
)

// Engine derives ProfileMetrics documents. It is safe for concurrent use:
// every pass works on its own document and draws a fresh random source.
type Engine struct {
	tables   *tables.Provider
	logger   *slog.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
	randPool func() *rand.Rand
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock pins the clock used for the growth series anchor month.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandSource replaces the per-pass random source constructor so tests
// can assert exact growth values with a fixed seed.
func WithRandSource(src func() *rand.Rand) Option {
	return func(e *Engine) { e.randPool = src }
}

// NewEngine builds a derivation engine over the live table snapshot.
func NewEngine(tbl *tables.Provider, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		tables:  tbl,
		logger:  logger.With(slog.String("agent", "derivation")),
		metrics: recorder,
		now:     time.Now,
		randPool: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Derive produces a fresh ProfileMetrics document from a raw payload.
func (e *Engine) Derive(raw RawPayload) ProfileMetrics {
	doc := ProfileMetrics{Provenance: make(map[string]Provenance)}

	e.step("identity", func() { e.deriveIdentity(raw, &doc) })
	e.step("counters", func() { e.deriveCounters(raw, &doc) })

	var avgLikes, avgComments, avgInteractions *float64
	e.step("engagement", func() {
		avgLikes = floatField(raw, fieldAvgLikes)
		avgComments = floatField(raw, fieldAvgComments)
		avgInteractions = floatField(raw, fieldAvgInteractions)
		doc.AvgLikes = avgLikes
		doc.AvgComments = avgComments
		tagIf(doc.Provenance, "avgLikes", avgLikes != nil, ProvenanceExact)
		tagIf(doc.Provenance, "avgComments", avgComments != nil, ProvenanceExact)
	})

	e.step("credibility", func() {
		doc.Audience.Credibility = credibilityScore(e.gatherCredibilitySignals(raw, doc.EngagementRatePct, avgLikes, avgComments))
		tagIf(doc.Provenance, "audience.credibility", doc.Audience.Credibility != nil, ProvenanceEstimated)
	})

	e.step("influence", func() {
		quality := floatField(raw, fieldQualityScore)
		doc.InfluenceScore = influenceScore(quality, float64(doc.Followers), doc.EngagementRatePct, doc.Audience.Credibility)
		if doc.InfluenceScore != nil {
			if quality != nil {
				doc.Provenance["influenceScore"] = ProvenanceProviderModelled
			} else {
				doc.Provenance["influenceScore"] = ProvenanceEstimated
			}
		}
	})

	e.step("reach", func() {
		doc.EstimatedReach = estimatedReach(avgInteractions, avgLikes, avgComments)
		tagIf(doc.Provenance, "estimatedReach", doc.EstimatedReach != nil, ProvenanceEstimated)
	})

	e.step("reel_views", func() {
		doc.EstimatedReelViews = estimatedReelViews(avgLikes, avgComments)
		tagIf(doc.Provenance, "estimatedReelViews", doc.EstimatedReelViews != nil, ProvenanceEstimated)
	})

	e.step("reel_engagement", func() {
		likes, comments, prov := e.deriveReelEngagement(raw, doc.EstimatedReelViews, avgLikes, avgComments)
		doc.ReelAvgLikes = likes
		doc.ReelAvgComments = comments
		if prov != "" {
			doc.Provenance["reelAvgLikes"] = prov
			doc.Provenance["reelAvgComments"] = prov
		}
	})

	e.step("demographics", func() {
		if list, ok := fieldAudienceGenders.List(raw); ok {
			doc.Audience.Genders = parseSlices(list)
			tagIf(doc.Provenance, "audience.genders", len(doc.Audience.Genders) > 0, ProvenanceProviderModelled)
		}
		if list, ok := fieldAudienceAges.List(raw); ok {
			doc.Audience.AgeBuckets = parseSlices(list)
			tagIf(doc.Provenance, "audience.ageBuckets", len(doc.Audience.AgeBuckets) > 0, ProvenanceProviderModelled)
		}
	})

	e.step("geography", func() {
		doc.Audience.Countries = e.deriveCountries(raw)
		tagIf(doc.Provenance, "audience.countries", len(doc.Audience.Countries) > 0, ProvenanceProviderModelled)
		doc.Audience.Cities = deriveCities(raw)
		tagIf(doc.Provenance, "audience.cities", len(doc.Audience.Cities) > 0, ProvenanceProviderModelled)
	})

	e.step("states", func() {
		doc.Audience.States = e.deriveStates(doc.Audience.Cities)
		tagIf(doc.Provenance, "audience.states", len(doc.Audience.States) > 0, ProvenanceEstimated)
	})

	e.step("languages", func() {
		languages, prov := e.deriveLanguages(raw, doc.Audience.Countries)
		doc.Audience.Languages = languages
		tagIf(doc.Provenance, "audience.languages", prov != "", prov)
	})

	e.step("interests", func() {
		interests, prov := e.deriveInterests(raw)
		doc.Audience.Interests = interests
		tagIf(doc.Provenance, "audience.interests", prov != "", prov)
	})

	e.step("growth", func() {
		doc.Growth = syntheticGrowth(doc.Followers, e.now(), e.randPool())
		tagIf(doc.Provenance, "growth", len(doc.Growth) > 0, ProvenanceEstimated)
	})

	return doc
}

// step runs one derivation stage, absorbing panics so a malformed payload
// degrades a single metric instead of the whole document.
func (e *Engine) step(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("derivation step degraded",
				slog.String("step", name),
				slog.Any("cause", r))
			e.metrics.ObserveDeriveDegraded(name)
		}
	}()
	fn()
}

func (e *Engine) deriveIdentity(raw RawPayload, doc *ProfileMetrics) {
	if handle, ok := fieldHandle.String(raw); ok {
		doc.Handle = handle
		doc.Provenance["handle"] = ProvenanceExact
	}
	if name, ok := fieldName.String(raw); ok {
		doc.Name = name
		doc.Provenance["name"] = ProvenanceExact
	}
	if bio, ok := fieldBio.String(raw); ok {
		doc.Bio = bio
		doc.Provenance["bio"] = ProvenanceExact
	}
	if avatar, ok := fieldAvatar.String(raw); ok {
		doc.AvatarURL = avatar
		doc.Provenance["avatarUrl"] = ProvenanceExact
	}
	if verified, ok := fieldVerified.Bool(raw); ok {
		doc.Verified = verified
		doc.Provenance["verified"] = ProvenanceExact
	}
}

func (e *Engine) deriveCounters(raw RawPayload, doc *ProfileMetrics) {
	if followers, ok := fieldFollowers.Float(raw); ok && followers >= 0 {
		doc.Followers = int64(followers)
		doc.Provenance["followers"] = ProvenanceExact
	}
	if following, ok := fieldFollowing.Float(raw); ok && following >= 0 {
		doc.Following = int64(following)
		doc.Provenance["following"] = ProvenanceExact
	}
	if posts, ok := fieldPosts.Float(raw); ok && posts >= 0 {
		doc.Posts = int64(posts)
		doc.Provenance["posts"] = ProvenanceExact
	}
	if er, ok := fieldEngagementRate.Float(raw); ok && er >= 0 {
		// Some payload generations report a fraction, others a percentage.
		if er < 1 {
			er *= 100
		}
		doc.EngagementRatePct = &er
		doc.Provenance["engagementRatePct"] = ProvenanceExact
	}
}

// deriveReelEngagement resolves reel-level averages through the three-tier
// fallback: provider-supplied reel averages, then a mean over the last <=20
// video-like posts (at least 3 required), then an algebraic back-solve from
// the estimated view count. When every tier fails both values stay nil,
// never guessed.
func (e *Engine) deriveReelEngagement(raw RawPayload, estViews, avgLikes, avgComments *float64) (likes, comments *float64, prov Provenance) {
	if l, lok := fieldReelAvgLikes.Float(raw); lok {
		if c, cok := fieldReelAvgComments.Float(raw); cok {
			return &l, &c, ProvenanceExact
		}
	}
	if l, c, ok := reelAveragesFromPosts(raw); ok {
		return l, c, ProvenanceEstimated
	}
	if l, c := reelBackSolve(estViews, avgLikes, avgComments); l != nil {
		return l, c, ProvenanceEstimated
	}
	return nil, nil, ""
}

func (e *Engine) gatherCredibilitySignals(raw RawPayload, erPct, avgLikes, avgComments *float64) credibilitySignals {
	signals := credibilitySignals{engagementRatePct: erPct}

	if avgLikes != nil && *avgLikes > 0 && avgComments != nil {
		ratio := *avgComments / *avgLikes
		signals.commentLikeRatio = &ratio
	}
	if fake, ok := fieldFakeFollowers.Float(raw); ok && fake >= 0 {
		if fake > 1 {
			fake /= 100
		}
		signals.fakeFollowerFrac = &fake
	}
	if perWeek, ok := fieldPostsPerWeek.Float(raw); ok && perWeek >= 0 {
		signals.postsPerWeek = &perWeek
	}
	return signals
}

func floatField(raw RawPayload, field Field) *float64 {
	if value, ok := field.Float(raw); ok {
		return &value
	}
	return nil
}

func tagIf(provenance map[string]Provenance, key string, present bool, tag Provenance) {
	if present && tag != "" {
		provenance[key] = tag
	}
}
