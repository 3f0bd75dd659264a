// Package fields pulls voter attributes out of a flattened card line.
package fields

import (
	"regexp"
	"strings"

	"github.com/local/rollscan/internal/voter"
)

// UnknownName is used when no name label is found.
const UnknownName = "Unknown"

var (
	strictIDRe = regexp.MustCompile(`(?i)\b([A-Z]{3})([0-9O]{7})\b`)
	looseIDRe  = regexp.MustCompile(`(?i)\b([A-Z]{3,})([0-9][0-9O]{4,})\b`)

	// nameLabelRe matches "Name" labels; group 1 is set for relative labels.
	nameLabelRe = regexp.MustCompile(`(?i)\b(?:(father|husband|mother|guardian)\s*(?:'|’)?\s*s?\s*)?name\b\s*[:\-.|]*\s*`)
	// stopRe marks where a labelled value ends.
	stopRe = regexp.MustCompile(`(?i)\b(?:father|husband|mother|guardian|house|gender|elector|photo)\b|\ba[gq]e(?:\b|\d)|\bno\.?\s*[:\-]`)

	houseRe     = regexp.MustCompile(`(?i)\b(?:house\s*(?:no\.?|number)?|h\s*\.?\s*no\.?)\s*[:\-.|]*\s*([A-Za-z0-9/\-]+)`)
	ageGenderRe = regexp.MustCompile(`(?i)\ba[gq]e\s*[:\-.|]*\s*(\d{1,3})[^A-Za-z0-9]*(?:(?:gender|sex)\s*[:\-.|]*\s*)?([A-Za-z]+)`)
	ageOnlyRe   = regexp.MustCompile(`(?i)\ba[gq]e\s*[:\-.|]*\s*(\d{1,3})(?:[^0-9]|$)`)
	serialRe    = regexp.MustCompile(`^\s*(\d+)`)

	// bareNoRe is a house label written as just "No:"; needs the colon or dash.
	bareNoRe = regexp.MustCompile(`(?i)\bno\.?\s*[:\-][:\-.|]*\s*([A-Za-z0-9/\-]+)`)
	// qualifiedNoRe catches "No" labels that belong to another field.
	qualifiedNoRe = regexp.MustCompile(`(?i)\b(?:sl|s|serial|part|epic|station|section|booth)\s*\.?\s*$`)
)

// Fields is what one card line yields.
type Fields struct {
	ID           string
	Name         string
	RelativeName string
	HouseNo      string
	Age          string
	Gender       string
	SerialNo     string
}

// Extract applies every field rule to line. Rules are independent; a
// missing field leaves its default.
func Extract(line string) Fields {
	f := Fields{Name: UnknownName}
	f.ID = ExtractID(line)
	f.Name, f.RelativeName = names(line)
	f.HouseNo = houseNo(line)
	if m := ageGenderRe.FindStringSubmatch(line); m != nil && !isLabel(m[2]) {
		f.Age, f.Gender = m[1], m[2]
	} else if m := ageOnlyRe.FindStringSubmatch(line); m != nil {
		f.Age = m[1]
	}
	if m := serialRe.FindStringSubmatch(line); m != nil {
		f.SerialNo = m[1]
	}
	return f
}

// IsIDToken reports whether s carries an id; used as the region anchor.
func IsIDToken(s string) bool {
	return ExtractID(s) != ""
}

// ExtractID returns the normalized id in s or "". A letter O inside the
// digit run is read as zero.
func ExtractID(s string) string {
	m := strictIDRe.FindStringSubmatch(s)
	if m == nil {
		m = looseIDRe.FindStringSubmatch(s)
	}
	if m == nil {
		return ""
	}
	digits := strings.NewReplacer("O", "0", "o", "0").Replace(m[2])
	return strings.ToUpper(m[1]) + digits
}

func houseNo(line string) string {
	if m := houseRe.FindStringSubmatch(line); m != nil && !stopRe.MatchString(m[1]) {
		return m[1]
	}
	for _, loc := range bareNoRe.FindAllStringSubmatchIndex(line, -1) {
		if qualifiedNoRe.MatchString(line[:loc[0]]) {
			continue
		}
		if v := line[loc[2]:loc[3]]; !stopRe.MatchString(v) {
			return v
		}
	}
	return ""
}

func names(line string) (name, relative string) {
	name = UnknownName
	gotName, gotRel := false, false
	for _, loc := range nameLabelRe.FindAllStringSubmatchIndex(line, -1) {
		isRel := loc[2] >= 0
		val := valueUntilStop(line[loc[1]:])
		switch {
		case isRel && !gotRel:
			relative, gotRel = val, true
		case !isRel && !gotName:
			if val != "" {
				name = val
			}
			gotName = true
		}
	}
	return name, relative
}

func valueUntilStop(s string) string {
	if loc := stopRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	// a following bare "Name" label is also a stop
	if loc := nameLabelRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.Trim(strings.Join(strings.Fields(s), " "), " :-.,|'’")
}

func isLabel(s string) bool {
	switch strings.ToLower(s) {
	case "gender", "sex", "father", "husband", "mother", "house", "photo", "name":
		return true
	}
	return false
}

// Voter builds a record from the fields plus page context.
func (f Fields) Voter(h Header, page int) voter.Voter {
	return voter.Voter{
		EpicNo:           f.ID,
		SlNo:             f.SerialNo,
		NameEn:           f.Name,
		RelativeName:     f.RelativeName,
		HouseNo:          f.HouseNo,
		Age:              f.Age,
		Gender:           f.Gender,
		AssemblyName:     h.Assembly,
		ParliamentName:   h.Parliament,
		PollingStationNo: h.PollingStation,
		OriginalPage:     page,
	}
}
