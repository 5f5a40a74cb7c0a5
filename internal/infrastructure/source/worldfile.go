package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseWorldFile reads the six lines of an ESRI world file (A, D, B, E, C, F)
// and returns them as [A, E, B, D, C, F], the order RawTile.Affine uses.
func ParseWorldFile(r io.Reader) ([]float64, error) {
	var vals []float64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("world file line %d: %w", len(vals)+1, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(vals) != 6 {
		return nil, fmt.Errorf("world file has %d values, want 6", len(vals))
	}
	a, d, b, e, c, f := vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]
	return []float64{a, e, b, d, c, f}, nil
}
