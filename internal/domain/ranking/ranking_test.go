package ranking_test

import (
	"testing"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func people(scores ...float64) []model.Person {
	out := make([]model.Person, len(scores))
	for i, s := range scores {
		out[i] = model.Person{Label: string(rune('A' + i)), CompositeScore: s}
	}
	return out
}

func TestRank(t *testing.T) {
	Convey("Given four people with a shared score", t, func() {
		in := people(55, 70, 55, 40)

		Convey("When they are ranked", func() {
			ranked, winner, tie := ranking.Rank(in)

			Convey("Then scores are descending with dense 1-based ranks", func() {
				So(ranked, ShouldHaveLength, 4)
				for i, p := range ranked {
					So(p.Rank, ShouldEqual, i+1)
				}
				So(ranked[0].Label, ShouldEqual, "B")
				So(ranked[3].Label, ShouldEqual, "D")
			})

			Convey("Then the first-seen 55 ranks ahead of the second", func() {
				So(ranked[1].Label, ShouldEqual, "A")
				So(ranked[2].Label, ShouldEqual, "C")
			})

			Convey("Then the winner index points into the original slice", func() {
				So(winner, ShouldEqual, 1)
				So(in[winner].CompositeScore, ShouldEqual, 70.0)
			})

			Convey("Then a 15 point lead is not a tie", func() {
				So(tie, ShouldBeFalse)
			})

			Convey("Then the input is not mutated", func() {
				So(in[0].Rank, ShouldEqual, 0)
				So(in[0].Label, ShouldEqual, "A")
			})
		})
	})

	Convey("Tie detection is a strict absolute threshold", t, func() {
		_, _, tie := ranking.Rank(people(50.0, 53.0))
		So(tie, ShouldBeFalse)

		_, _, tie = ranking.Rank(people(50.0, 52.9))
		So(tie, ShouldBeTrue)

		_, _, tie = ranking.Rank(people(50.0, 47.1))
		So(tie, ShouldBeTrue)
	})

	Convey("Only the top two are compared", t, func() {
		_, _, tie := ranking.Rank(people(80, 60, 59))
		So(tie, ShouldBeFalse)
	})

	Convey("Degenerate inputs", t, func() {
		ranked, winner, tie := ranking.Rank(people(42))
		So(ranked[0].Rank, ShouldEqual, 1)
		So(winner, ShouldEqual, 0)
		So(tie, ShouldBeFalse)

		ranked, winner, tie = ranking.Rank(nil)
		So(ranked, ShouldBeEmpty)
		So(winner, ShouldEqual, -1)
		So(tie, ShouldBeFalse)
	})
}
