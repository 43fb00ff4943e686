package derive

import (
	"strings"
)

var videoTypeMarkers = []string{"video", "reel", "reels", "clips", "igtv"}

// isVideoLike applies the provider's loose typing heuristics: any of the
// known type fields naming a video format, or an explicit is_video flag.
func isVideoLike(post map[string]any) bool {
	switch postType(post) {
	case "video":
		return true
	case "image", "carousel":
		return false
	}
	if flag, ok := post["is_video"].(bool); ok {
		return flag
	}
	return false
}

// postType collapses the provider's assorted type fields into
// image/video/carousel, or "" when no field is recognizable.
func postType(post map[string]any) string {
	for _, key := range []string{"type", "media_type", "product_type", "postType"} {
		value, ok := post[key].(string)
		if !ok {
			continue
		}
		lowered := strings.ToLower(value)
		for _, marker := range videoTypeMarkers {
			if strings.Contains(lowered, marker) {
				return "video"
			}
		}
		switch {
		case strings.Contains(lowered, "carousel"), strings.Contains(lowered, "sidecar"), strings.Contains(lowered, "album"):
			return "carousel"
		case strings.Contains(lowered, "image"), strings.Contains(lowered, "photo"), strings.Contains(lowered, "graphimage"):
			return "image"
		}
	}
	return ""
}

// postCount reads the first numeric counter among keys.
func postCount(post map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if value, ok := post[key]; ok {
			if n, numeric := asFloat(value); numeric {
				return n, true
			}
		}
	}
	return 0, false
}

// postText concatenates the caption and hashtag list for keyword scanning.
func postText(post map[string]any) string {
	var parts []string
	for _, key := range []string{"caption", "text", "title"} {
		if s, ok := post[key].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if tags, ok := post["hashtags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
