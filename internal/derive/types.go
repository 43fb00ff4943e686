package derive

// Provenance marks how a metric value was obtained. A field computed via a
// documented formula is never tagged EXACT.
type Provenance string

const (
	// ProvenanceExact marks values echoed from the provider unchanged.
	ProvenanceExact Provenance = "EXACT"
	// ProvenanceEstimated marks values computed by a documented formula.
	ProvenanceEstimated Provenance = "ESTIMATED"
	// ProvenanceProviderModelled marks values the provider itself models
	// (audience demographics, quality scores) rather than measures.
	ProvenanceProviderModelled Provenance = "PROVIDER_MODELLED"
)

// Slice is one named share of an audience dimension. Percent is a fraction
// in [0,1]; slices for a single dimension are sorted descending and need not
// sum to 1 because top-N truncation is lossy by design.
type Slice struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// GrowthPoint is one month of the synthetic follower history.
type GrowthPoint struct {
	Month     string `json:"month"`
	Followers int64  `json:"followers"`
}

// Audience is the demographic breakdown of a profile's followers.
type Audience struct {
	Genders     []Slice  `json:"genders,omitempty"`
	AgeBuckets  []Slice  `json:"ageBuckets,omitempty"`
	Countries   []Slice  `json:"countries,omitempty"`
	Cities      []Slice  `json:"cities,omitempty"`
	States      []Slice  `json:"states,omitempty"`
	Languages   []Slice  `json:"languages,omitempty"`
	Interests   []Slice  `json:"interests,omitempty"`
	Credibility *float64 `json:"credibility,omitempty"`
}

// ProfileMetrics is the normalized, UI-ready document produced by one
// derivation pass. It is created fresh every pass and replaced wholesale,
// never partially updated.
type ProfileMetrics struct {
	Handle    string `json:"handle"`
	Name      string `json:"name,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Verified  bool   `json:"verified"`

	Followers int64 `json:"followers"`
	Following int64 `json:"following,omitempty"`
	Posts     int64 `json:"posts,omitempty"`

	EngagementRatePct  *float64 `json:"engagementRatePct,omitempty"`
	AvgLikes           *float64 `json:"avgLikes,omitempty"`
	AvgComments        *float64 `json:"avgComments,omitempty"`
	EstimatedReach     *float64 `json:"estimatedReach,omitempty"`
	EstimatedReelViews *float64 `json:"estimatedReelViews,omitempty"`
	ReelAvgLikes       *float64 `json:"reelAvgLikes,omitempty"`
	ReelAvgComments    *float64 `json:"reelAvgComments,omitempty"`
	InfluenceScore     *float64 `json:"influenceScore,omitempty"`

	Audience Audience      `json:"audience"`
	Growth   []GrowthPoint `json:"growth,omitempty"`

	Provenance map[string]Provenance `json:"provenance"`
}
