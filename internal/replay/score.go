package replay

import (
	"context"

	"github.com/okian/framerank/internal/adapters/counter"
	service "github.com/okian/framerank/internal/app"
	"github.com/okian/framerank/internal/domain/keypoint"
	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/internal/domain/types"
)

// Score runs each fixture through an in-process, local-only analysis. No
// request leaves the machine.
func Score(ctx context.Context, fixtures []Fixture, opts ...keypoint.Option) []Outcome {
	svc := service.New(
		service.WithDeriver(keypoint.NewDeriver(opts...)),
		service.WithCounter(counter.NewMemory()),
	)
	_ = svc.Start(ctx)
	defer svc.Stop()

	out := make([]Outcome, 0, len(fixtures))
	for _, f := range fixtures {
		res, err := svc.Analyze(ctx, f.Request)
		o := Outcome{Fixture: f.Name}
		if err != nil {
			o.Response = types.Fail(model.CodeOf(err), model.MessageOf(err))
		} else {
			o.Response = types.OK(res)
			o.Violations = Verify(res)
		}
		out = append(out, o)
	}
	return out
}
