package http

import (
	"regexp"
	"strings"
)

var (
	slashRuns         = regexp.MustCompile(`/+`)
	schemeSeparator   = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.\-]*):/`)
	fileSchemePrefix  = regexp.MustCompile(`^file:/*`)
	slashBeforeMarker = regexp.MustCompile(`/(\?|&|#[^!])`)
)

// JoinURL joins URL segments with "/" and normalizes the result: slash runs
// collapse to one, "scheme://" is restored, "file:" keeps a single slash, no
// slash is left in front of "?", "&" or "#" (except "#!"), and when the join
// produced more than one "?" only the first survives, the rest becoming "&".
func JoinURL(parts ...string) string {
	joined := strings.Join(parts, "/")
	joined = slashRuns.ReplaceAllString(joined, "/")
	joined = schemeSeparator.ReplaceAllString(joined, "${1}://")
	joined = fileSchemePrefix.ReplaceAllString(joined, "file:/")
	joined = slashBeforeMarker.ReplaceAllString(joined, "${1}")

	if strings.Count(joined, "?") > 1 {
		joined = strings.ReplaceAll(joined, "?", "&")
		joined = strings.Replace(joined, "&", "?", 1)
	}

	return joined
}

// appendQuery adds an encoded query to rawURL, joining with "&" when rawURL
// already carries a query string. A fragment stays at the end.
func appendQuery(rawURL, encoded string) string {
	if encoded == "" {
		return rawURL
	}

	base, fragment, hasFragment := strings.Cut(rawURL, "#")

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = ""
		}
	}

	result := base + sep + encoded
	if hasFragment {
		result += "#" + fragment
	}
	return result
}
