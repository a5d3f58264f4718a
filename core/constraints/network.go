package constraints

import (
	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/losses"
	"github.com/kilianp07/spotmarket/core/model"
)

// DefaultLossSegments is the grid used for a loss model without break points.
const DefaultLossSegments = 20

type link struct {
	ic    model.Interconnector
	flow  int
	loss  int
	share float64
	pwl   losses.PiecewiseLinear
}

// Link exposes the variables of one interconnector.
type Link struct {
	Interconnector model.Interconnector
	FlowVar        int
	// LossVar is -1 when the interconnector is lossless.
	LossVar int
	// FromRegionLossShare is the fraction of losses charged to FromRegion.
	FromRegionLossShare float64
	Approximation       losses.PiecewiseLinear
}

// Links returns the interconnectors added by Network in input order.
func (b *Builder) Links() []Link {
	out := make([]Link, len(b.links))
	for i, l := range b.links {
		out[i] = Link{Interconnector: l.ic, FlowVar: l.flow, LossVar: l.loss, FromRegionLossShare: l.share, Approximation: l.pwl}
	}
	return out
}

// Network allocates a flow variable per interconnector and, for those with a
// loss model, the convex-combination rows tying flow and losses to the
// interpolation weights:
//
//	sum(w) = 1, flow = sum(w*bp), loss = sum(w*L(bp)).
//
// Interconnectors without break points use DefaultLossSegments over their
// flow limits. The grid must cover the flow limits.
func (b *Builder) Network(ics []model.Interconnector, lossModels []model.InterconnectorLoss, breakPoints []model.BreakPoint) error {
	known := make(map[string]struct{}, len(ics))
	for _, ic := range ics {
		known[ic.ID] = struct{}{}
	}
	lossOf := make(map[string]model.InterconnectorLoss, len(lossModels))
	for _, l := range lossModels {
		if _, ok := known[l.Interconnector]; !ok {
			return model.NewValidationError("interconnector_losses", l.Interconnector, "unknown interconnector")
		}
		if _, dup := lossOf[l.Interconnector]; dup {
			return model.NewValidationError("interconnector_losses", l.Interconnector, "duplicate loss model")
		}
		if l.FromRegionLossShare < 0 || l.FromRegionLossShare > 1 {
			return model.NewValidationError("interconnector_losses", l.Interconnector, "from_region_loss_share must be within [0, 1]")
		}
		lossOf[l.Interconnector] = l
	}
	for _, bp := range breakPoints {
		if _, ok := lossOf[bp.Interconnector]; !ok {
			return model.NewValidationError("break_points", bp.Interconnector, "no loss model for interconnector")
		}
	}
	for _, ic := range ics {
		l := link{ic: ic, loss: -1}
		l.flow = b.reg.Add(linear.Variable{Kind: linear.KindFlow, Entity: ic.ID, Lower: ic.MinFlow, Upper: ic.MaxFlow})
		if lm, ok := lossOf[ic.ID]; ok {
			if err := b.lossModel(&l, lm, breakPoints); err != nil {
				return err
			}
		}
		b.links = append(b.links, l)
	}
	return nil
}

func (b *Builder) lossModel(l *link, lm model.InterconnectorLoss, breakPoints []model.BreakPoint) error {
	id := l.ic.ID
	grid := model.GridFor(breakPoints, id)
	if len(grid) == 0 {
		grid = losses.UniformGrid(l.ic.MinFlow, l.ic.MaxFlow, DefaultLossSegments)
		if grid == nil {
			// Fixed flow: the model still needs two points.
			grid = []float64{l.ic.MinFlow - 1, l.ic.MaxFlow + 1}
		}
	}
	pwl, err := losses.Approximate(id, lm.Function, grid)
	if err != nil {
		return err
	}
	n := len(pwl.BreakPoints)
	if pwl.BreakPoints[0] > l.ic.MinFlow || pwl.BreakPoints[n-1] < l.ic.MaxFlow {
		return model.NewValidationError("break_points", id, "break points do not cover the flow limits")
	}
	lo, hi := pwl.Range()
	l.loss = b.reg.Add(linear.Variable{Kind: linear.KindLoss, Entity: id, Lower: lo, Upper: hi})
	l.share = lm.FromRegionLossShare
	l.pwl = pwl

	convexity := make([]linear.Term, n)
	flow := []linear.Term{{Var: l.flow, Coef: 1}}
	loss := []linear.Term{{Var: l.loss, Coef: 1}}
	for k := 0; k < n; k++ {
		w := b.reg.Add(linear.Variable{Kind: linear.KindWeight, Entity: id, Lower: 0, Upper: 1})
		convexity[k] = linear.Term{Var: w, Coef: 1}
		flow = append(flow, linear.Term{Var: w, Coef: -pwl.BreakPoints[k]})
		loss = append(loss, linear.Term{Var: w, Coef: -pwl.Values[k]})
	}
	for _, c := range []linear.Constraint{
		{Key: linear.Key{Set: id, Side: "convexity"}, Terms: convexity, RHS: 1},
		{Key: linear.Key{Set: id, Side: "flow"}, Terms: flow},
		{Key: linear.Key{Set: id, Side: "loss"}, Terms: loss},
	} {
		c.Family = linear.FamilyLossModel
		c.Sense = model.Equal
		if err := b.add(c); err != nil {
			return err
		}
	}
	return nil
}
