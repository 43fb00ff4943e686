package derive

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawPayload is the provider-defined analytics document. Nothing is assumed
// about its shape beyond "may be missing any field"; every logical attribute
// is read through a declared Field fallback chain.
type RawPayload map[string]any

// Field declares the ordered candidate paths for one logical attribute.
// Paths are dot-separated object traversals tried in order; the first path
// holding a non-nil value wins. Declaring every fallback chain in one place
// keeps the precedence rules visible and independently testable.
type Field struct {
	Name  string
	Paths []string
}

// Every provider field the engine consumes, with its probe order. The
// provider has shipped several payload generations with different nesting
// and naming; earlier paths correspond to newer generations.
var (
	fieldHandle    = Field{"handle", []string{"profile.username", "username", "handle", "user.username"}}
	fieldName      = Field{"name", []string{"profile.fullname", "profile.full_name", "fullname", "full_name", "name"}}
	fieldBio       = Field{"bio", []string{"profile.biography", "profile.bio", "biography", "bio"}}
	fieldAvatar    = Field{"avatar", []string{"profile.picture", "profile.profile_pic_url", "picture", "avatar_url"}}
	fieldVerified  = Field{"verified", []string{"profile.isVerified", "profile.is_verified", "is_verified", "verified"}}
	fieldFollowers = Field{"followers", []string{"profile.followers", "followers", "user.follower_count", "stats.followers"}}
	fieldFollowing = Field{"following", []string{"profile.following", "following", "user.following_count"}}
	fieldPosts     = Field{"posts", []string{"profile.postsCount", "posts_count", "media_count", "stats.posts"}}

	fieldEngagementRate  = Field{"engagement_rate", []string{"profile.engagementRate", "engagement_rate", "stats.engagement_rate"}}
	fieldAvgLikes        = Field{"avg_likes", []string{"profile.avgLikes", "avg_likes", "stats.avg_likes"}}
	fieldAvgComments     = Field{"avg_comments", []string{"profile.avgComments", "avg_comments", "stats.avg_comments"}}
	fieldAvgInteractions = Field{"avg_interactions", []string{"profile.avgInteractions", "avg_interactions", "stats.avg_interactions"}}
	fieldReelAvgLikes    = Field{"reel_avg_likes", []string{"profile.avgReelsLikes", "avg_reels_likes", "reels.avg_likes"}}
	fieldReelAvgComments = Field{"reel_avg_comments", []string{"profile.avgReelsComments", "avg_reels_comments", "reels.avg_comments"}}
	fieldQualityScore    = Field{"quality_score", []string{"profile.qualityScore", "quality_score", "scores.quality"}}
	fieldRecentPosts     = Field{"recent_posts", []string{"profile.recentPosts", "recentPosts", "recent_posts", "lastPosts", "posts"}}

	fieldFakeFollowers = Field{"fake_followers", []string{"audience.fakeFollowersPercent", "audience.fake_followers_percent", "fake_followers_percentage"}}
	fieldPostsPerWeek  = Field{"posts_per_week", []string{"profile.postsPerWeek", "posts_per_week", "stats.posts_per_week"}}

	fieldAudienceGenders   = Field{"audience_genders", []string{"audience.genders", "audience.gender", "demographics.genders"}}
	fieldAudienceAges      = Field{"audience_ages", []string{"audience.ages", "audience.age_ranges", "demographics.ages"}}
	fieldAudienceCountries = Field{"audience_countries", []string{"audience.geoCountries", "audience.countries", "demographics.countries"}}
	fieldAudienceCities    = Field{"audience_cities", []string{"audience.geoCities", "audience.cities", "demographics.cities"}}
	fieldAudienceLanguages = Field{"audience_languages", []string{"audience.languages", "demographics.languages"}}
	fieldAudienceInterests = Field{"audience_interests", []string{"audience.interests", "profile.interests", "interests"}}
)

// at walks a dot-separated path through nested objects.
func (p RawPayload) at(path string) (any, bool) {
	var current any = map[string]any(p)
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Resolve returns the first non-nil candidate value.
func (f Field) Resolve(p RawPayload) (any, bool) {
	for _, path := range f.Paths {
		if value, ok := p.at(path); ok && value != nil {
			return value, true
		}
	}
	return nil, false
}

// Float resolves the field to a float64, accepting JSON numbers, integer
// types, and numeric strings (the provider quotes counters in some payload
// generations).
func (f Field) Float(p RawPayload) (float64, bool) {
	value, ok := f.Resolve(p)
	if !ok {
		return 0, false
	}
	return asFloat(value)
}

// String resolves the field to a non-empty string.
func (f Field) String(p RawPayload) (string, bool) {
	value, ok := f.Resolve(p)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Bool resolves the field to a boolean, tolerating string forms.
func (f Field) Bool(p RawPayload) (bool, bool) {
	value, ok := f.Resolve(p)
	if !ok {
		return false, false
	}
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

// List resolves the field to a non-empty array.
func (f Field) List(p RawPayload) ([]any, bool) {
	value, ok := f.Resolve(p)
	if !ok {
		return nil, false
	}
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	return list, true
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
