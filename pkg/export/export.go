// Package export writes dispatch results as JSON or CSV with values rounded
// to a fixed number of decimal places.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/spotmarket/core/model"
)

// DefaultPlaces is the rounding used by the CLI.
const DefaultPlaces = 5

// Table selects the CSV table.
type Table string

const (
	Prices          Table = "prices"
	Dispatch        Table = "dispatch"
	Interconnectors Table = "interconnectors"
)

func round(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

func roundf(v float64, places int32) float64 {
	return round(v, places).InexactFloat64()
}

// Rounded returns a copy of res with every price, dispatch, flow and the
// objective rounded half away from zero.
func Rounded(res model.DispatchResult, places int32) model.DispatchResult {
	out := res
	out.Objective = roundf(res.Objective, places)
	out.Dispatch = make([]model.UnitDispatch, len(res.Dispatch))
	for i, d := range res.Dispatch {
		d.Dispatch = roundf(d.Dispatch, places)
		out.Dispatch[i] = d
	}
	out.Prices = make([]model.RegionPrice, len(res.Prices))
	for i, p := range res.Prices {
		p.Price = roundf(p.Price, places)
		out.Prices[i] = p
	}
	out.Interconnectors = make([]model.InterconnectorFlow, len(res.Interconnectors))
	for i, f := range res.Interconnectors {
		f.Flow = roundf(f.Flow, places)
		f.Losses = roundf(f.Losses, places)
		out.Interconnectors[i] = f
	}
	return out
}

// WriteJSON writes the rounded results to w as an indented JSON array.
func WriteJSON(w io.Writer, results []model.DispatchResult, places int32) error {
	out := make([]model.DispatchResult, len(results))
	for i, r := range results {
		out[i] = Rounded(r, places)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteCSV writes one table of the optimal results to w. Failed intervals
// have no rows.
func WriteCSV(w io.Writer, table Table, results []model.DispatchResult, places int32) error {
	cw := csv.NewWriter(w)
	var header []string
	var rows func(model.DispatchResult) [][]string
	switch table {
	case Prices:
		header = []string{"interval", "region", "service", "price"}
		rows = func(r model.DispatchResult) [][]string {
			out := make([][]string, len(r.Prices))
			for i, p := range r.Prices {
				out[i] = []string{r.Interval, p.Region, string(p.Service), round(p.Price, places).StringFixed(places)}
			}
			return out
		}
	case Dispatch:
		header = []string{"interval", "unit", "service", "dispatch_mw"}
		rows = func(r model.DispatchResult) [][]string {
			out := make([][]string, len(r.Dispatch))
			for i, d := range r.Dispatch {
				out[i] = []string{r.Interval, d.Unit, string(d.Service), round(d.Dispatch, places).StringFixed(places)}
			}
			return out
		}
	case Interconnectors:
		header = []string{"interval", "interconnector", "flow_mw", "losses_mw"}
		rows = func(r model.DispatchResult) [][]string {
			out := make([][]string, len(r.Interconnectors))
			for i, f := range r.Interconnectors {
				out[i] = []string{r.Interval, f.Interconnector,
					round(f.Flow, places).StringFixed(places), round(f.Losses, places).StringFixed(places)}
			}
			return out
		}
	default:
		return fmt.Errorf("unknown export table %q", table)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		if r.Status != model.StatusOptimal {
			continue
		}
		if err := cw.WriteAll(rows(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format: "json" or "csv".
func Write(w io.Writer, format string, table Table, results []model.DispatchResult, places int32) error {
	switch format {
	case "json":
		return WriteJSON(w, results, places)
	case "csv":
		return WriteCSV(w, table, results, places)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
