package voter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Voter is one digitized electoral-roll entry. The poll-state fields
// (IsVoted, VotedParty, Timestamp) stay zero after extraction and are only
// changed by MarkVoted and ClearVote.
type Voter struct {
	EpicNo           string     `json:"epic_no"`
	SlNo             string     `json:"sl_no"`
	NameEn           string     `json:"name_en"`
	NameTe           string     `json:"name_te,omitempty"`
	RelativeName     string     `json:"relative_name"`
	HouseNo          string     `json:"house_no"`
	Age              string     `json:"age"`
	Gender           string     `json:"gender"`
	AssemblyName     string     `json:"assembly_name"`
	ParliamentName   string     `json:"parliament_name"`
	PollingStationNo string     `json:"polling_station_no"`
	PhotoBase64      string     `json:"photo_base64,omitempty"`
	OriginalPage     int        `json:"original_page"`
	IsVoted          bool       `json:"is_voted"`
	VotedParty       *string    `json:"voted_party"`
	Timestamp        *time.Time `json:"timestamp"`
}

// RawRecord is the loosely-typed shape a vision model returns for one card.
// Box is the normalized [ymin, xmin, ymax, xmax] photo box on a 0-1000 grid.
type RawRecord struct {
	EpicNo           string    `json:"id"`
	SlNo             string    `json:"sl_no"`
	NameEn           string    `json:"name"`
	NameTe           string    `json:"name_te"`
	RelativeName     string    `json:"relative_name"`
	HouseNo          string    `json:"house_no"`
	Age              string    `json:"age"`
	Gender           string    `json:"gender"`
	AssemblyName     string    `json:"assembly_name"`
	ParliamentName   string    `json:"parliament_name"`
	PollingStationNo string    `json:"polling_station_no"`
	Box              []float64 `json:"box,omitempty"`
}

// Voter converts the raw record into a Voter for the given page.
func (r RawRecord) Voter(page int) Voter {
	return Voter{
		EpicNo:           r.EpicNo,
		SlNo:             r.SlNo,
		NameEn:           r.NameEn,
		NameTe:           r.NameTe,
		RelativeName:     r.RelativeName,
		HouseNo:          r.HouseNo,
		Age:              r.Age,
		Gender:           r.Gender,
		AssemblyName:     r.AssemblyName,
		ParliamentName:   r.ParliamentName,
		PollingStationNo: r.PollingStationNo,
		OriginalPage:     page,
	}
}

// MarkVoted records a cast vote. An empty party is stored as absent.
func (v *Voter) MarkVoted(party string, at time.Time) {
	v.IsVoted = true
	v.VotedParty = nil
	if p := strings.TrimSpace(party); p != "" {
		v.VotedParty = &p
	}
	t := at
	v.Timestamp = &t
}

// ClearVote resets the poll state.
func (v *Voter) ClearVote() {
	v.IsVoted = false
	v.VotedParty = nil
	v.Timestamp = nil
}

// SortBySerial orders voters by numeric serial number; serials that are not
// numbers go last in lexical order.
func SortBySerial(vs []Voter) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, aerr := strconv.Atoi(strings.TrimSpace(vs[i].SlNo))
		b, berr := strconv.Atoi(strings.TrimSpace(vs[j].SlNo))
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return vs[i].SlNo < vs[j].SlNo
	})
}

// Roll is a job's voter list.
type Roll []Voter

// Find returns the index of the voter with the given id, or -1.
func (r Roll) Find(epic string) int {
	epic = strings.ToUpper(strings.TrimSpace(epic))
	for i := range r {
		if strings.ToUpper(r[i].EpicNo) == epic {
			return i
		}
	}
	return -1
}

// Counts returns the total and voted tallies.
func (r Roll) Counts() (total, voted int) {
	for _, v := range r {
		if v.IsVoted {
			voted++
		}
	}
	return len(r), voted
}

// ErrNotFound is returned when an id is not on the roll.
var ErrNotFound = errors.New("voter not found")

// Mark sets or clears the vote of the voter with the given id and
// returns the updated entry.
func (r Roll) Mark(epic string, voted bool, party string, at time.Time) (Voter, error) {
	i := r.Find(epic)
	if i < 0 {
		return Voter{}, fmt.Errorf("%w: %s", ErrNotFound, epic)
	}
	if voted {
		r[i].MarkVoted(party, at)
	} else {
		r[i].ClearVote()
	}
	return r[i], nil
}
