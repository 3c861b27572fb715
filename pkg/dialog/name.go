package dialog

import (
	"regexp"
	"strings"
)

// namePatterns are tried in order; the first capture wins.
var namePatterns = compileAll(
	`我叫(\p{Han}+)`,
	`我的名字是(\p{Han}+)`,
	`我是(\p{Han}+)`,
	`这是(\p{Han}+)`,
	`叫我(\p{Han}+)`,
	`名字是(\p{Han}+)`,
	`是(\p{Han}+)`,
	`我(\p{Han}+)`,
	`叫(\p{Han}+)`,
	`名(\p{Han}+)`,
)

var allHan = regexp.MustCompile(`^\p{Han}+$`)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// ExtractName pulls a name out of an introduction such as "我叫小明".
// A bare run of Han characters is taken as the name itself.
func ExtractName(response string) (string, bool) {
	response = normalize(response)
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(response); m != nil {
			return m[1], true
		}
	}
	trimmed := strings.TrimSpace(response)
	if allHan.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}
