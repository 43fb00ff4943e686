package derive

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sociallens/sociallens/internal/metrics"
	"github.com/sociallens/sociallens/internal/tables"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	tbl, err := tables.Load("")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{
		WithClock(func() time.Time { return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC) }),
		WithRandSource(func() *rand.Rand { return rand.New(rand.NewSource(42)) }),
	}
	return NewEngine(tables.NewProvider(tbl), logger, metrics.NewRecorder(nil), append(base, opts...)...)
}

func richPayload() RawPayload {
	return RawPayload{
		"profile": map[string]any{
			"username":       "wanderlust.diaries",
			"fullname":       "Riley Tran",
			"biography":      "travel, one city at a time",
			"picture":        "https://cdn.example.com/avatar.jpg",
			"isVerified":     true,
			"followers":      float64(250000),
			"following":      float64(310),
			"postsCount":     float64(840),
			"engagementRate": float64(0.0274),
			"avgLikes":       float64(6400),
			"avgComments":    float64(120),
		},
		"audience": map[string]any{
			"fakeFollowersPercent": float64(12),
			"genders": []any{
				map[string]any{"name": "female", "percent": float64(61)},
				map[string]any{"name": "male", "percent": float64(39)},
			},
			"geoCountries": []any{
				map[string]any{"name": "US", "percent": float64(0.4)},
				map[string]any{"name": "india", "percent": float64(0.3)},
			},
			"geoCities": []any{
				map[string]any{"name": "Mumbai", "percent": float64(0.2)},
				map[string]any{"name": "Atlantis", "percent": float64(0.5)},
			},
		},
	}
}

func TestDeriveIdentityAndCounters(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())

	require.Equal(t, "wanderlust.diaries", doc.Handle)
	require.Equal(t, "Riley Tran", doc.Name)
	require.True(t, doc.Verified)
	require.Equal(t, int64(250000), doc.Followers)
	require.Equal(t, int64(310), doc.Following)
	require.Equal(t, int64(840), doc.Posts)

	require.Equal(t, ProvenanceExact, doc.Provenance["handle"])
	require.Equal(t, ProvenanceExact, doc.Provenance["followers"])
}

func TestDeriveEngagementRateScaleNormalization(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())

	// 0.0274 arrives as a fraction and is reported in percent.
	require.NotNil(t, doc.EngagementRatePct)
	require.InDelta(t, 2.74, *doc.EngagementRatePct, 1e-9)

	doc = newTestEngine(t).Derive(RawPayload{"engagement_rate": float64(2.74)})
	require.NotNil(t, doc.EngagementRatePct)
	require.InDelta(t, 2.74, *doc.EngagementRatePct, 1e-9)
}

func TestDeriveReachFormula(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{
		"avg_likes":    float64(100),
		"avg_comments": float64(10),
	})

	require.NotNil(t, doc.EstimatedReach)
	require.Equal(t, 700.0, *doc.EstimatedReach)
	require.Equal(t, ProvenanceEstimated, doc.Provenance["estimatedReach"])
}

func TestDeriveReelViewsZeroInputs(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{
		"avg_likes":    float64(0),
		"avg_comments": float64(0),
	})

	require.NotNil(t, doc.EstimatedReelViews)
	require.Equal(t, 0.0, *doc.EstimatedReelViews)

	doc = newTestEngine(t).Derive(RawPayload{"followers": float64(10)})
	require.Nil(t, doc.EstimatedReelViews, "absent inputs yield nil, not zero")
}

func TestDeriveReelEngagementDirectIsExact(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{
		"avg_reels_likes":    float64(900),
		"avg_reels_comments": float64(45),
	})

	require.NotNil(t, doc.ReelAvgLikes)
	require.Equal(t, 900.0, *doc.ReelAvgLikes)
	require.Equal(t, ProvenanceExact, doc.Provenance["reelAvgLikes"])
}

func TestDeriveReelEngagementBackSolve(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{
		"avg_likes":    float64(1000),
		"avg_comments": float64(50),
	})

	require.NotNil(t, doc.ReelAvgLikes)
	require.NotNil(t, doc.ReelAvgComments)
	require.Equal(t, ProvenanceEstimated, doc.Provenance["reelAvgLikes"])

	views := 4.2*1000 + 18*50
	require.InDelta(t, views, 4.2*(*doc.ReelAvgLikes)+18*(*doc.ReelAvgComments), 1e-6)
}

func TestDeriveStatesFromCuratedCitiesOnly(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())

	// Atlantis has no curated state mapping and must be excluded, even
	// though it carries the largest city share.
	require.Len(t, doc.Audience.States, 1)
	require.Equal(t, "Maharashtra", doc.Audience.States[0].Name)
	require.InDelta(t, 0.2, doc.Audience.States[0].Percent, 1e-9)
	require.Equal(t, ProvenanceEstimated, doc.Provenance["audience.states"])

	// Cities themselves are passed through untouched.
	require.Len(t, doc.Audience.Cities, 2)
	require.Equal(t, "Atlantis", doc.Audience.Cities[0].Name)
}

func TestDeriveCountriesNormalized(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())

	require.Len(t, doc.Audience.Countries, 2)
	require.Equal(t, "United States", doc.Audience.Countries[0].Name)
	require.Equal(t, "India", doc.Audience.Countries[1].Name)
	require.Equal(t, ProvenanceProviderModelled, doc.Provenance["audience.countries"])
}

func TestDeriveLanguagesFromCountries(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())

	require.NotEmpty(t, doc.Audience.Languages)
	require.Equal(t, ProvenanceEstimated, doc.Provenance["audience.languages"])

	var total float64
	for _, language := range doc.Audience.Languages {
		total += language.Percent
	}
	require.InDelta(t, 1.0, total, 1e-9, "projected language weights renormalize to 1")
	require.Equal(t, "English", doc.Audience.Languages[0].Name)
}

func TestDeriveLanguagesProviderWins(t *testing.T) {
	payload := richPayload()
	audience := payload["audience"].(map[string]any)
	audience["languages"] = []any{
		map[string]any{"name": "Spanish", "percent": float64(0.9)},
		map[string]any{"name": "English", "percent": float64(0.1)},
	}

	doc := newTestEngine(t).Derive(payload)
	require.Equal(t, "Spanish", doc.Audience.Languages[0].Name)
	require.Equal(t, ProvenanceProviderModelled, doc.Provenance["audience.languages"])
}

func TestDeriveLanguagesStableAcrossRuns(t *testing.T) {
	engine := newTestEngine(t)
	first := engine.Derive(richPayload()).Audience.Languages
	require.NotEmpty(t, first)

	// The projection sums weight tables; the order of those additions must
	// be fixed so repeated runs produce bit-identical percentages.
	for range 10 {
		require.Equal(t, first, engine.Derive(richPayload()).Audience.Languages)
	}
}

func TestDeriveGenderScaleNormalization(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())

	require.Len(t, doc.Audience.Genders, 2)
	require.InDelta(t, 0.61, doc.Audience.Genders[0].Percent, 1e-9)
}

func TestDeriveCredibilityBlend(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())
	require.NotNil(t, doc.Audience.Credibility)

	// ER 2.74%, ratio 120/6400, fake followers 12% (arrives on the 0-100
	// scale). No posts-per-week signal, so weights renormalize over three.
	ratio := 120.0 / 6400.0
	erSub := logScale(2.74, 0.5, 15) / 10
	deviation := (0.10 - ratio) / 0.10
	ratioSub := 1 - 0.40*deviation/2.0
	fakeSub := 1 - 0.12
	want := (0.45*erSub + 0.15*ratioSub + 0.25*fakeSub) / (0.45 + 0.15 + 0.25)
	require.InDelta(t, want, *doc.Audience.Credibility, 1e-9)
	require.Equal(t, ProvenanceEstimated, doc.Provenance["audience.credibility"])
}

func TestDeriveInfluenceProvenance(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())
	require.NotNil(t, doc.InfluenceScore)
	require.Equal(t, ProvenanceEstimated, doc.Provenance["influenceScore"])

	doc = newTestEngine(t).Derive(RawPayload{"quality_score": float64(0.7)})
	require.NotNil(t, doc.InfluenceScore)
	require.InDelta(t, 1+9*0.7, *doc.InfluenceScore, 1e-9)
	require.Equal(t, ProvenanceProviderModelled, doc.Provenance["influenceScore"])
}

func TestDeriveGrowthSeries(t *testing.T) {
	doc := newTestEngine(t).Derive(richPayload())

	require.Len(t, doc.Growth, 12)
	require.Equal(t, "2025-06", doc.Growth[11].Month)
	require.Equal(t, "2024-07", doc.Growth[0].Month)
	require.Equal(t, int64(250000), doc.Growth[11].Followers)
	for i := 1; i < len(doc.Growth); i++ {
		require.Less(t, doc.Growth[i-1].Followers, doc.Growth[i].Followers,
			"history must grow monotonically toward the current count")
	}
}

func TestDeriveGrowthDeterministicWithSeed(t *testing.T) {
	engine := newTestEngine(t)
	first := engine.Derive(richPayload())
	second := engine.Derive(richPayload())
	require.Equal(t, first.Growth, second.Growth, "a pinned seed pins the series")
}

func TestDeriveIdempotentApartFromGrowth(t *testing.T) {
	engine := newTestEngine(t)
	first := engine.Derive(richPayload())
	second := engine.Derive(richPayload())

	first.Growth, second.Growth = nil, nil
	require.Equal(t, first, second)
}

func TestDeriveEmptyPayload(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{})

	require.Empty(t, doc.Handle)
	require.Nil(t, doc.EstimatedReach)
	require.Nil(t, doc.InfluenceScore)
	require.Nil(t, doc.Audience.Credibility)
	require.Nil(t, doc.Growth)
	require.Empty(t, doc.Provenance)
}

func TestDeriveStepPanicDegradesOnlyThatMetric(t *testing.T) {
	tbl, err := tables.Load("")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(tables.NewProvider(tbl), logger, metrics.NewRecorder(nil))
	// A nil tables provider makes every table-backed step panic; the rest
	// of the document must still come out intact.
	engine.tables = nil

	doc := engine.Derive(richPayload())

	require.Equal(t, "wanderlust.diaries", doc.Handle)
	require.Equal(t, int64(250000), doc.Followers)
	require.NotNil(t, doc.EstimatedReach)
	require.Empty(t, doc.Audience.Countries, "table-backed step degraded")
	require.Empty(t, doc.Audience.States)
}

func TestDeriveInterestsFromCaptions(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{
		"recent_posts": []any{
			map[string]any{"caption": "new gym routine #fitness"},
			map[string]any{"caption": "packing for bali #travel"},
			map[string]any{"caption": "leg day again #fitness"},
			map[string]any{"caption": "no tags here at all"},
		},
	})

	require.NotEmpty(t, doc.Audience.Interests)
	require.Equal(t, "Fitness", doc.Audience.Interests[0].Name)
	require.InDelta(t, 2.0/3.0, doc.Audience.Interests[0].Percent, 1e-9)
	require.Equal(t, ProvenanceEstimated, doc.Provenance["audience.interests"])
}

func TestDeriveInterestsProviderTagsWin(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{
		"audience": map[string]any{
			"interests": []any{
				map[string]any{"name": "Beauty", "weight": float64(0.7)},
				map[string]any{"name": "Fashion", "weight": float64(0.3)},
			},
		},
	})

	require.Equal(t, "Beauty", doc.Audience.Interests[0].Name)
	require.Equal(t, ProvenanceProviderModelled, doc.Provenance["audience.interests"])
}

func TestDeriveInterestsPostTypeFallback(t *testing.T) {
	doc := newTestEngine(t).Derive(RawPayload{
		"recent_posts": []any{
			map[string]any{"type": "video"},
			map[string]any{"type": "image"},
			map[string]any{"type": "video"},
			map[string]any{"type": "carousel"},
		},
	})

	require.Len(t, doc.Audience.Interests, 3)
	require.Equal(t, "Videos", doc.Audience.Interests[0].Name)
	require.InDelta(t, 0.5, doc.Audience.Interests[0].Percent, 1e-9)
}
