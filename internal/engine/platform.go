package engine

import (
	"net/url"
	"strings"
)

// Known SNS platforms.
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformX         = "x"
)

var knownPlatforms = []string{PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformX}

func normalizePlatform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "twitter" {
		return PlatformX
	}
	return p
}

func isKnownPlatform(p string) bool {
	for _, k := range knownPlatforms {
		if k == p {
			return true
		}
	}
	return false
}

// postPlatform identifies the platform of a post URL and checks it points at a post
// rather than a profile or home page.
func postPlatform(rawURL string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	segments := splitPathSegments(parsed.Path)
	switch {
	case hostMatches(host, "instagram.com"):
		if len(segments) >= 2 && (segments[0] == "p" || segments[0] == "reel" || segments[0] == "reels" || segments[0] == "tv") {
			return PlatformInstagram, true
		}
	case hostMatches(host, "tiktok.com"):
		if len(segments) >= 3 && strings.HasPrefix(segments[0], "@") && segments[1] == "video" {
			return PlatformTikTok, true
		}
		if (host == "vm.tiktok.com" || host == "vt.tiktok.com") && len(segments) >= 1 {
			return PlatformTikTok, true
		}
	case host == "youtu.be":
		if len(segments) >= 1 {
			return PlatformYouTube, true
		}
	case hostMatches(host, "youtube.com"):
		if strings.TrimSpace(parsed.Query().Get("v")) != "" {
			return PlatformYouTube, true
		}
		if len(segments) >= 2 && segments[0] == "shorts" {
			return PlatformYouTube, true
		}
	case hostMatches(host, "x.com"), hostMatches(host, "twitter.com"):
		if len(segments) >= 3 && segments[1] == "status" {
			return PlatformX, true
		}
	}
	return "", false
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func splitPathSegments(rawPath string) []string {
	parts := strings.Split(strings.Trim(strings.TrimSpace(rawPath), "/"), "/")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			items = append(items, value)
		}
	}
	return items
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
