package linear

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/spotmarket/core/model"
)

type mpsEntry struct {
	row  string
	coef float64
}

func mpsName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return '_'
		}
		return r
	}, s)
}

func mpsFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteMPS writes m in free MPS format so it can be handed to an external
// solver for inspection.
func WriteMPS(w io.Writer, name string, m *Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "NAME %s\nROWS\n N COST\n", mpsName(name))
	cols := make([][]mpsEntry, len(m.Variables))
	for _, c := range m.Constraints {
		row := mpsName(c.Name())
		var tag string
		switch c.Sense {
		case model.LessEq:
			tag = "L"
		case model.GreaterEq:
			tag = "G"
		default:
			tag = "E"
		}
		fmt.Fprintf(bw, " %s %s\n", tag, row)
		for _, t := range c.Terms {
			cols[t.Var] = append(cols[t.Var], mpsEntry{row: row, coef: t.Coef})
		}
	}
	fmt.Fprintln(bw, "COLUMNS")
	for i, v := range m.Variables {
		col := mpsName(v.Name())
		if v.Cost != 0 {
			fmt.Fprintf(bw, " %s COST %s\n", col, mpsFloat(v.Cost))
		}
		for _, e := range cols[i] {
			fmt.Fprintf(bw, " %s %s %s\n", col, e.row, mpsFloat(e.coef))
		}
	}
	fmt.Fprintln(bw, "RHS")
	for _, c := range m.Constraints {
		if c.RHS != 0 {
			fmt.Fprintf(bw, " RHS %s %s\n", mpsName(c.Name()), mpsFloat(c.RHS))
		}
	}
	fmt.Fprintln(bw, "BOUNDS")
	for _, v := range m.Variables {
		col := mpsName(v.Name())
		if v.Lower == v.Upper {
			fmt.Fprintf(bw, " FX BND %s %s\n", col, mpsFloat(v.Lower))
			continue
		}
		if v.Lower != 0 {
			fmt.Fprintf(bw, " LO BND %s %s\n", col, mpsFloat(v.Lower))
		}
		fmt.Fprintf(bw, " UP BND %s %s\n", col, mpsFloat(v.Upper))
	}
	fmt.Fprintln(bw, "ENDATA")
	return bw.Flush()
}
