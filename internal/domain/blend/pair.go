package blend

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/framerank/internal/domain/model"
)

// Candidate is one person ready to be blended. Either side may be nil.
type Candidate struct {
	Label    string
	Position string
	Remote   *model.Vector
	Local    *Local
}

// Pair matches remote people with local detections. Both lists are ordered
// left to right and zipped when their lengths agree; the zipped candidates come
// back in detection order. When they disagree the
// remote list wins and reason explains why the local estimates were dropped.
// With one side empty the other is returned as is, in its original order.
func Pair(remote []model.Person, local []Local) (out []Candidate, reason string) {
	switch {
	case len(remote) == 0:
		out = make([]Candidate, 0, len(local))
		for i := range local {
			out = append(out, Candidate{Label: local[i].DisplayLabel(), Position: local[i].Position, Local: &local[i]})
		}
		return out, ""
	case len(local) == 0:
		return remoteOnly(remote), ""
	case len(remote) != len(local):
		return remoteOnly(remote), fmt.Sprintf("remote found %d people, detector found %d", len(remote), len(local))
	}

	r := slices.Clone(remote)
	slices.SortStableFunc(r, func(a, b model.Person) int {
		return cmp.Compare(horizontalRank(a.Position), horizontalRank(b.Position))
	})
	l := slices.Clone(local)
	slices.SortStableFunc(l, func(a, b Local) int { return cmp.Compare(a.CenterX, b.CenterX) })

	out = make([]Candidate, len(r))
	for i := range r {
		c := Candidate{Label: r[i].Label, Position: r[i].Position, Remote: &r[i].Signals, Local: &l[i]}
		if l[i].Label != "" {
			c.Label = l[i].Label
		}
		if c.Position == "" || c.Position == UnknownPosition {
			c.Position = l[i].Position
		}
		out[i] = c
	}
	// Back to detection order: ranking breaks ties and reports the winner by it.
	slices.SortStableFunc(out, func(a, b Candidate) int { return cmp.Compare(a.Local.Index, b.Local.Index) })
	return out, ""
}

// DisplayLabel is the user label, or "Person N" by detection order.
func (l Local) DisplayLabel() string {
	if l.Label != "" {
		return l.Label
	}
	return fmt.Sprintf("Person %d", l.Index+1)
}

// UnknownPosition marks a person whose place in the frame was not reported.
const UnknownPosition = "unknown"

func remoteOnly(remote []model.Person) []Candidate {
	out := make([]Candidate, len(remote))
	for i := range remote {
		out[i] = Candidate{Label: remote[i].Label, Position: remote[i].Position, Remote: &remote[i].Signals}
	}
	return out
}

// horizontalRank orders free-text positions left to right. Text without a
// recognised direction sorts with the centre.
func horizontalRank(position string) int {
	p := strings.ToLower(position)
	switch {
	case strings.Contains(p, "left"):
		return 0
	case strings.Contains(p, "right"):
		return 2
	default:
		return 1
	}
}

// PositionOf names the third of the frame that holds x.
func PositionOf(x, frameW float64) string {
	if frameW <= 0 {
		return UnknownPosition
	}
	switch r := x / frameW; {
	case r < 1.0/3:
		return "left"
	case r > 2.0/3:
		return "right"
	default:
		return "center"
	}
}
