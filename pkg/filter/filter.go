// Package filter selects entries by seed count, size and title keywords.
// Everything here is pure; no state is kept between calls.
package filter

import (
	"regexp"
	"strconv"
	"strings"

	"yggharvest/pkg/models"
)

// Criteria is a conjunction of optional checks.
type Criteria struct {
	MinSeeds  int
	MaxSizeMB *float64
	Keywords  []string
}

// IsZero reports whether c accepts every entry.
func (c *Criteria) IsZero() bool {
	return c == nil || (c.MinSeeds <= 0 && c.MaxSizeMB == nil && len(c.Keywords) == 0)
}

// Matches applies c to e. A nil Criteria matches everything.
//
// Entries with no seed count are rejected once a minimum is set. An
// unparseable size always passes the size check.
func Matches(e *models.Entry, c *Criteria) bool {
	if c == nil {
		return true
	}

	if c.MinSeeds > 0 {
		if e.Seeds == nil || *e.Seeds < c.MinSeeds {
			return false
		}
	}

	if c.MaxSizeMB != nil {
		if size, ok := ParseSizeMB(e.Size); ok && size > *c.MaxSizeMB {
			return false
		}
	}

	if len(c.Keywords) > 0 {
		title := strings.ToLower(e.Title)
		found := false
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(title, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// Apply returns the entries of in that match c, in order.
func Apply(in []*models.Entry, c *Criteria) []*models.Entry {
	out := make([]*models.Entry, 0, len(in))
	for _, e := range in {
		if Matches(e, c) {
			out = append(out, e)
		}
	}
	return out
}

var sizeRe = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*([A-Z]*)`)

// unitFactors converts a unit to megabytes (1024 based). French octet
// units are used by the tracker's own pages.
var unitFactors = map[string]float64{
	"":    1.0 / (1024 * 1024),
	"B":   1.0 / (1024 * 1024),
	"O":   1.0 / (1024 * 1024),
	"K":   1.0 / 1024,
	"KB":  1.0 / 1024,
	"KIB": 1.0 / 1024,
	"KO":  1.0 / 1024,
	"M":   1,
	"MB":  1,
	"MIB": 1,
	"MO":  1,
	"G":   1024,
	"GB":  1024,
	"GIB": 1024,
	"GO":  1024,
	"T":   1024 * 1024,
	"TB":  1024 * 1024,
	"TIB": 1024 * 1024,
	"TO":  1024 * 1024,
}

// ParseSizeMB converts a free-form size such as "1.5 GB", "700MB",
// "1,2 Go" or "734003200" (bytes) to megabytes. ok is false when the text
// has no recognisable number or unit.
func ParseSizeMB(s string) (float64, bool) {
	m := sizeRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	factor, ok := unitFactors[m[2]]
	if !ok {
		return 0, false
	}
	return value * factor, true
}
