package trace

import (
	"context"
	"io"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"hwtrellis.org/trellis"
	"hwtrellis.org/trellis/viterbi"
)

// Summary describes a completed run.
type Summary struct {
	Segments  int
	Overflows int
	Steps     int
	Reason    viterbi.StopReason
	// Lines is the number of records in the trace, including the terminator.
	Lines  int
	Digest trellis.TraceID
}

// Run calls e.RunSegment until it stops, writing every decoded segment to w
// and then the terminator.
func Run(ctx context.Context, e *viterbi.Engine, w *Writer) (*Summary, error) {
	var reason viterbi.StopReason
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := e.RunSegment(ctx)
		if res.Status == viterbi.Stop {
			reason = res.Reason
			break
		}
		if res.Segment == nil {
			continue
		}
		if err := w.WriteSegment(res.Segment); err != nil {
			return nil, err
		}
	}
	if err := w.WriteTerminator(); err != nil {
		return nil, err
	}
	digest, err := w.Digest()
	if err != nil {
		return nil, err
	}
	st := e.Stats()
	sum := &Summary{
		Segments:  st.Segments,
		Overflows: st.Overflows,
		Steps:     st.Steps,
		Reason:    reason,
		Lines:     w.Lines(),
		Digest:    digest,
	}
	logctx.Info(ctx, "run complete",
		zap.Int("segments", sum.Segments),
		zap.Int("overflows", sum.Overflows),
		zap.Stringer("reason", sum.Reason),
		zap.Stringer("digest", sum.Digest),
	)
	return sum, nil
}

// RunCase runs a fresh engine over c, writing the trace to out.
func RunCase(ctx context.Context, c *Case, cfg viterbi.Config, out io.Writer) (*Summary, error) {
	e := viterbi.New(c.Model, c.Obs, cfg)
	return Run(ctx, e, NewWriter(out))
}
