// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Solver backends, metric sinks and journal stores all register through it:
//
//	reg := factory.NewRegistry[solver.Solver]()
//	reg.Register("gonum", func(conf map[string]any) (solver.Solver, error) {
//	    var c struct{ Tolerance float64 `json:"tolerance"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return lpsolver.New(c.Tolerance), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "gonum", Conf: map[string]any{"tolerance": 1e-9}})
package factory
