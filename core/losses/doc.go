// Package losses models interconnector losses. A Quadratic evaluates the
// demand-dependent loss equation of an interconnector; Approximate turns any
// convex loss function into a PiecewiseLinear function over an interpolation
// grid, which the market model encodes with convex-combination weights.
package losses
