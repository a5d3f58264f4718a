package lpsolver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/model"
)

var (
	errInfeasible = errors.New("phase one ended with positive artificials")
	errRay        = errors.New("unbounded ray in a bounded model")
	errIterations = errors.New("iteration limit reached")
	errNoPivot    = errors.New("no admissible pivot")
)

const (
	pivotTol = 1e-9
	// degenerate pivots in a row before switching to Bland's rule.
	stallLimit = 50
)

type column int8

const (
	colStructural column = iota
	colLogical
	colArtificial
)

// tableau holds B^-1 A for a bounded-variable LP with rows
// sum(A x) (sense) b and columns shifted to [0, upper].
//
// Only model constraints become rows. Variable bounds are carried by the
// ratio test so the tableau stays rows x (vars + rows) at most.
type tableau struct {
	rows, cols int
	t          *mat.Dense
	beta       []float64
	d          []float64
	cost       []float64
	upper      []float64
	kind       []column
	atUpper    []bool
	basis      []int
	// unit is the column that started as sign*e_i for row i.
	unit     []int
	unitSign []float64
	// rowOf maps a constraint id to its row, -1 when the row was dropped.
	rowOf []int
	shift []float64
	tol   float64
	feas  float64
	bland bool
	stall int
	iters int
	limit int
	check func() error
}

// newTableau builds the phase one tableau. Rows whose terms cancel out are
// dropped when 0 satisfies them and rejected with errInfeasible otherwise.
func newTableau(m *linear.Model, tol float64) (*tableau, error) {
	n := len(m.Variables)
	type row struct {
		coef  map[int]float64
		sense model.Sense
		rhs   float64
	}
	kept := make([]row, 0, len(m.Constraints))
	rowOf := make([]int, len(m.Constraints))
	zero := make([]float64, n)
	for i, c := range m.Constraints {
		coef := make(map[int]float64, len(c.Terms))
		for _, t := range c.Terms {
			coef[t.Var] += t.Coef
		}
		for k, v := range coef {
			if v == 0 {
				delete(coef, k)
			}
		}
		if len(coef) == 0 {
			if !c.Satisfied(zero, tol) {
				return nil, fmt.Errorf("%s: %w", c.Name(), errInfeasible)
			}
			rowOf[i] = -1
			continue
		}
		rhs := c.RHS
		for k, v := range coef {
			rhs -= v * m.Variables[k].Lower
		}
		rowOf[i] = len(kept)
		kept = append(kept, row{coef: coef, sense: c.Sense, rhs: rhs})
	}

	rows := len(kept)
	unit := make([]int, rows)
	unitSign := make([]float64, rows)
	logical := make([]int, rows)
	cols := n
	for i, r := range kept {
		logical[i] = -1
		if r.sense != model.Equal {
			logical[i] = cols
			cols++
		}
	}
	nLogical := cols - n
	artificial := make([]bool, rows)
	for i, r := range kept {
		switch {
		case r.sense == model.LessEq && r.rhs >= 0:
			unit[i], unitSign[i] = logical[i], 1
		case r.sense == model.GreaterEq && r.rhs <= 0:
			unit[i], unitSign[i] = logical[i], -1
		default:
			artificial[i] = true
			unit[i], unitSign[i] = cols, 1
			if r.rhs < 0 {
				unitSign[i] = -1
			}
			cols++
		}
	}

	tb := &tableau{
		rows:     rows,
		cols:     cols,
		t:        mat.NewDense(max(rows, 1), max(cols, 1), nil),
		beta:     make([]float64, rows),
		d:        make([]float64, cols),
		cost:     make([]float64, cols),
		upper:    make([]float64, cols),
		kind:     make([]column, cols),
		atUpper:  make([]bool, cols),
		basis:    make([]int, rows),
		unit:     unit,
		unitSign: unitSign,
		rowOf:    rowOf,
		shift:    make([]float64, n),
		tol:      tol,
		limit:    20*(rows+cols) + 1000,
	}
	for j, v := range m.Variables {
		tb.shift[j] = v.Lower
		tb.upper[j] = v.Upper - v.Lower
		tb.cost[j] = v.Cost
	}
	for j := n; j < n+nLogical; j++ {
		tb.kind[j] = colLogical
		tb.upper[j] = math.Inf(1)
	}
	for j := n + nLogical; j < cols; j++ {
		tb.kind[j] = colArtificial
		tb.upper[j] = math.Inf(1)
	}
	var scale float64
	for i, r := range kept {
		s := unitSign[i]
		raw := tb.t.RawRowView(i)
		for k, v := range r.coef {
			raw[k] = s * v
		}
		switch r.sense {
		case model.LessEq:
			raw[logical[i]] = s
		case model.GreaterEq:
			raw[logical[i]] = -s
		}
		if artificial[i] {
			raw[unit[i]] = 1
		}
		tb.basis[i] = unit[i]
		tb.beta[i] = s * r.rhs
		scale = math.Max(scale, math.Abs(r.rhs))
	}
	tb.feas = 1e-6 * math.Max(1, scale)
	return tb, nil
}

// row returns the tableau row of constraint i.
func (tb *tableau) row(i int) []float64 {
	return tb.t.RawRowView(i)[:tb.cols]
}

// price recomputes the reduced costs for costs c.
func (tb *tableau) price(c []float64) {
	copy(tb.d, c)
	for i, b := range tb.basis {
		if c[b] != 0 {
			floats.AddScaled(tb.d, -c[b], tb.row(i))
		}
	}
}

// phaseOne finds a feasible basis by minimising the artificial sum, then
// fixes every artificial at zero.
func (tb *tableau) phaseOne() error {
	c := make([]float64, tb.cols)
	artificials := false
	for j, k := range tb.kind {
		if k == colArtificial {
			c[j] = 1
			artificials = true
		}
	}
	if artificials {
		tb.price(c)
		if err := tb.primal(); err != nil {
			return err
		}
		var infeas float64
		for i, b := range tb.basis {
			if tb.kind[b] == colArtificial {
				infeas += math.Max(tb.beta[i], 0)
			}
		}
		if infeas > tb.feas {
			return errInfeasible
		}
	}
	for j, k := range tb.kind {
		if k == colArtificial {
			tb.upper[j] = 0
			tb.atUpper[j] = false
		}
	}
	return nil
}

// phaseTwo minimises the model objective from a feasible basis.
func (tb *tableau) phaseTwo() error {
	tb.price(tb.cost)
	return tb.primal()
}

func (tb *tableau) step() error {
	tb.iters++
	if tb.iters > tb.limit {
		return errIterations
	}
	if tb.check != nil {
		return tb.check()
	}
	return nil
}

// entering picks a nonbasic column that improves the objective and its
// direction: +1 from the lower bound, -1 from the upper bound.
func (tb *tableau) entering(basic []bool) (int, float64) {
	q, dir, best := -1, 0.0, 0.0
	for j := 0; j < tb.cols; j++ {
		if basic[j] || tb.upper[j] == 0 {
			continue
		}
		var gain float64
		switch {
		case !tb.atUpper[j] && tb.d[j] < -tb.tol:
			gain = -tb.d[j]
		case tb.atUpper[j] && tb.d[j] > tb.tol:
			gain = tb.d[j]
		default:
			continue
		}
		if tb.bland {
			if tb.atUpper[j] {
				return j, -1
			}
			return j, 1
		}
		if gain > best {
			q, best = j, gain
			dir = 1
			if tb.atUpper[j] {
				dir = -1
			}
		}
	}
	return q, dir
}

func (tb *tableau) basicSet() []bool {
	basic := make([]bool, tb.cols)
	for _, b := range tb.basis {
		basic[b] = true
	}
	return basic
}

// primal runs bounded primal simplex iterations until no column improves.
func (tb *tableau) primal() error {
	basic := tb.basicSet()
	for {
		if err := tb.step(); err != nil {
			return err
		}
		q, dir := tb.entering(basic)
		if q < 0 {
			return nil
		}
		r, theta, toUpper := tb.ratio(q, dir)
		flip := tb.upper[q]
		if r < 0 && math.IsInf(flip, 1) {
			return errRay
		}
		if r < 0 || flip <= theta {
			tb.move(q, dir*flip)
			tb.atUpper[q] = !tb.atUpper[q]
			tb.stall = 0
			continue
		}
		tb.track(theta)
		leaving := tb.basis[r]
		enter := theta
		if dir < 0 {
			enter = tb.upper[q] - theta
		}
		tb.move(q, dir*theta)
		tb.pivot(r, q)
		tb.beta[r] = enter
		tb.atUpper[leaving] = toUpper
		tb.atUpper[q] = false
		basic[leaving], basic[q] = false, true
	}
}

func (tb *tableau) track(theta float64) {
	if theta <= 1e-12 {
		tb.stall++
		if tb.stall > stallLimit {
			tb.bland = true
		}
		return
	}
	tb.stall = 0
	tb.bland = false
}

// ratio finds the basic variable that first reaches a bound when column q
// moves by dir. It returns row -1 when no basic variable limits the step.
func (tb *tableau) ratio(q int, dir float64) (int, float64, bool) {
	r, theta, toUpper, pivot := -1, math.Inf(1), false, 0.0
	for i := 0; i < tb.rows; i++ {
		a := dir * tb.t.At(i, q)
		var lim float64
		var up bool
		switch {
		case a > pivotTol:
			lim = math.Max(tb.beta[i], 0) / a
		case a < -pivotTol:
			u := tb.upper[tb.basis[i]]
			if math.IsInf(u, 1) {
				continue
			}
			lim = math.Max(u-tb.beta[i], 0) / -a
			up = true
		default:
			continue
		}
		abs := math.Abs(a)
		switch {
		case lim < theta-1e-12:
		case lim <= theta+1e-12 && !tb.bland && abs > pivot:
		case lim <= theta+1e-12 && tb.bland && r >= 0 && tb.basis[i] < tb.basis[r]:
		default:
			continue
		}
		r, theta, toUpper, pivot = i, lim, up, abs
	}
	return r, theta, toUpper
}

// move shifts column q by delta and updates the basic values.
func (tb *tableau) move(q int, delta float64) {
	if delta == 0 {
		return
	}
	for i := 0; i < tb.rows; i++ {
		if a := tb.t.At(i, q); a != 0 {
			tb.beta[i] -= delta * a
		}
	}
}

// pivot makes q basic in row r.
func (tb *tableau) pivot(r, q int) {
	pr := tb.row(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i := 0; i < tb.rows; i++ {
		if i == r {
			continue
		}
		ri := tb.row(i)
		if f := ri[q]; f != 0 {
			floats.AddScaled(ri, -f, pr)
			ri[q] = 0
		}
	}
	if f := tb.d[q]; f != 0 {
		floats.AddScaled(tb.d, -f, pr)
		tb.d[q] = 0
	}
	tb.basis[r] = q
}

// infeasibleRow returns the basic variable furthest outside its bounds.
func (tb *tableau) infeasibleRow() (int, bool) {
	r, worst, above := -1, tb.feas*1e-3, false
	for i, b := range tb.basis {
		if v := -tb.beta[i]; v > worst {
			r, worst, above = i, v, false
		}
		if v := tb.beta[i] - tb.upper[b]; v > worst {
			r, worst, above = i, v, true
		}
	}
	return r, above
}

// dual runs bounded dual simplex iterations from a dual feasible basis until
// every basic variable is within its bounds.
func (tb *tableau) dual() error {
	basic := tb.basicSet()
	for {
		if err := tb.step(); err != nil {
			return err
		}
		r, above := tb.infeasibleRow()
		if r < 0 {
			return nil
		}
		leaving := tb.basis[r]
		delta := -tb.beta[r]
		if above {
			delta = tb.beta[r] - tb.upper[leaving]
		}
		pr := tb.row(r)
		q, dir, best, pivot := -1, 0.0, math.Inf(1), 0.0
		for j := 0; j < tb.cols; j++ {
			if basic[j] || tb.upper[j] == 0 {
				continue
			}
			a := pr[j]
			if math.Abs(a) <= pivotTol {
				continue
			}
			s := 1.0
			if tb.atUpper[j] {
				s = -1
			}
			// Moving j by s changes beta[r] by -s*a.
			if (above && s*a <= 0) || (!above && s*a >= 0) {
				continue
			}
			lim := math.Abs(tb.d[j]) / math.Abs(a)
			if lim < best-1e-12 || (lim <= best+1e-12 && math.Abs(a) > pivot) {
				q, dir, best, pivot = j, s, lim, math.Abs(a)
			}
		}
		if q < 0 {
			return errNoPivot
		}
		theta := delta / math.Abs(pr[q])
		enter := theta
		if dir < 0 {
			enter = tb.upper[q] - theta
		}
		tb.move(q, dir*theta)
		tb.pivot(r, q)
		tb.beta[r] = enter
		tb.atUpper[leaving] = above
		tb.atUpper[q] = false
		basic[leaving], basic[q] = false, true
	}
}

// perturb moves the rhs of row i by delta[i] while keeping the basis.
func (tb *tableau) perturb(delta []float64) {
	for i, dv := range delta {
		if dv == 0 {
			continue
		}
		// B^-1 e_i is sign_i times the current unit column.
		tb.move(tb.unit[i], -tb.unitSign[i]*dv)
	}
}

// primalValues maps the basis back to model variables.
func (tb *tableau) primalValues() []float64 {
	x := make([]float64, len(tb.shift))
	for j := range x {
		if tb.atUpper[j] {
			x[j] = tb.upper[j]
		}
	}
	for i, b := range tb.basis {
		if b < len(x) {
			x[b] = math.Min(math.Max(tb.beta[i], 0), tb.upper[b])
		}
	}
	for j := range x {
		x[j] += tb.shift[j]
	}
	return x
}

// rowDuals returns d(objective)/d(rhs) for every tableau row. It holds only
// after phaseTwo, when unit columns cost nothing.
func (tb *tableau) rowDuals() []float64 {
	y := make([]float64, tb.rows)
	for i, u := range tb.unit {
		y[i] = -tb.unitSign[i] * tb.d[u]
	}
	return y
}

// contextCheck polls ctx every few iterations.
func contextCheck(ctx context.Context) func() error {
	n := 0
	return func() error {
		n++
		if n%8 != 0 {
			return nil
		}
		return ctx.Err()
	}
}
