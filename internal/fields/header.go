package fields

import (
	"regexp"
	"strings"
)

// Header is the page-level context printed above the cards.
type Header struct {
	Assembly       string
	Parliament     string
	PollingStation string
}

var (
	assemblyRe   = regexp.MustCompile(`(?i)assembly.*?constituency\s*(?:no\.?\s*(?:and|&)\s*name)?\s*[:\-|]*\s*(.*?)\s*(?:parliament\w*|polling|part\s*no|section|$)`)
	parliamentRe = regexp.MustCompile(`(?i)parliament\w*\s+constituency\s*(?:no\.?\s*(?:and|&)\s*name)?\s*[:\-|]*\s*(.*?)\s*(?:assembly|polling|part\s*no|section|$)`)
	pollingRe    = regexp.MustCompile(`(?i)polling.*?station\s*(?:no\.?|number)?\s*(?:(?:and|&)\s*name)?\s*[:\-|]*\s*(.*?)\s*(?:assembly|parliament\w*|part\s*no|section|$)`)
)

// ExtractHeader reads the header band text. Missing values are "".
func ExtractHeader(line string) Header {
	return Header{
		Assembly:       capture(assemblyRe, line),
		Parliament:     capture(parliamentRe, line),
		PollingStation: capture(pollingRe, line),
	}
}

func capture(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), " :-,|")
}
