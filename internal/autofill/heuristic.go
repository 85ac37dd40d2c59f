package autofill

import (
	"regexp"
	"strings"
)

// bodySampleLen bounds how much body text the heuristic looks at.
const bodySampleLen = 1000

var jobPagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)apply`),
	regexp.MustCompile(`(?i)application`),
	regexp.MustCompile(`(?i)career`),
	regexp.MustCompile(`(?i)job`),
	regexp.MustCompile(`(?i)position`),
	regexp.MustCompile(`(?i)resume`),
	regexp.MustCompile(`(?i)workday`),
	regexp.MustCompile(`(?i)greenhouse`),
	regexp.MustCompile(`(?i)lever`),
	regexp.MustCompile(`(?i)taleo`),
}

// LooksLikeJobApplication guesses whether a page is a job application from its
// URL, title and the start of its body text.
func LooksLikeJobApplication(pageURL, title, bodyText string) bool {
	if r := []rune(bodyText); len(r) > bodySampleLen {
		bodyText = string(r[:bodySampleLen])
	}
	for _, s := range []string{strings.ToLower(pageURL), strings.ToLower(title), strings.ToLower(bodyText)} {
		for _, p := range jobPagePatterns {
			if p.MatchString(s) {
				return true
			}
		}
	}
	return false
}
