package positional_test

import (
	"math"
	"testing"

	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/positional"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDerive(t *testing.T) {
	Convey("Given a bounding box in a 1000x800 frame", t, func() {
		box := model.BBox{X: 400, Y: 100, W: 200, H: 500}

		Convey("When it is derived twice", func() {
			a := positional.Derive(box, 0.9, 1000, 800)
			b := positional.Derive(box, 0.9, 1000, 800)

			Convey("Then the vectors are identical", func() {
				So(a, ShouldResemble, b)
			})

			Convey("Then every signal respects its bounds", func() {
				So(a.SpatialPresence, ShouldBeBetweenOrEqual, 30.0, 95.0)
				So(a.PostureDominance, ShouldBeBetweenOrEqual, 25.0, 95.0)
				So(a.FacialIntensity, ShouldBeBetweenOrEqual, 30.0, 95.0)
				So(a.AttentionCapture, ShouldBeBetweenOrEqual, 25.0, 95.0)
			})
		})

		Convey("When a box of the same size sits at the frame edge", func() {
			edge := box
			edge.X = 0
			centred := positional.Derive(box, 0.9, 1000, 800)
			side := positional.Derive(edge, 0.9, 1000, 800)

			Convey("Then the seed differs", func() {
				So(positional.Seed(edge), ShouldNotEqual, positional.Seed(box))
			})

			Convey("Then both vectors are integers", func() {
				for _, v := range []model.Vector{centred, side} {
					So(v.AttentionCapture, ShouldEqual, math.Round(v.AttentionCapture))
					So(v.SpatialPresence, ShouldEqual, math.Round(v.SpatialPresence))
				}
			})
		})

		Convey("When the box fills most of the frame", func() {
			v := positional.Derive(model.BBox{X: 0, Y: 0, W: 1000, H: 800}, 1, 1000, 800)

			Convey("Then spatial presence saturates at its ceiling", func() {
				So(v.SpatialPresence, ShouldEqual, 95.0)
			})
		})

		Convey("When the frame size is unknown", func() {
			v := positional.Derive(box, 0.5, 0, 0)

			Convey("Then no NaN leaks into the vector", func() {
				So(math.IsNaN(v.SpatialPresence), ShouldBeFalse)
				So(math.IsNaN(v.AttentionCapture), ShouldBeFalse)
				So(v.SpatialPresence, ShouldBeBetweenOrEqual, 30.0, 95.0)
			})
		})
	})
}
