package warp

import (
	"math"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// thinPlate is the TPS radial basis kernel U(r) = r^2 * ln(r).
func thinPlate(r float64) float64 {
	if r == 0 {
		return 0
	}
	return r * r * math.Log(r)
}

// tpsSolver interpolates a scalar field through a set of control points
// using thin plate spline radial basis functions. The interpolation passes
// exactly through every control point.
type tpsSolver struct {
	points  []Point
	weights []float64
}

// solveTPS fits weights so that the spline evaluates to values[i] at
// points[i]. Fails if the control points produce a singular system
// (duplicate points).
func solveTPS(points []Point, values []float64) (*tpsSolver, error) {
	n := len(points)
	if n == 0 || n != len(values) {
		return nil, schema.NewError(schema.ErrCodeValidation, "control point and value counts differ")
	}

	// Dense kernel matrix.
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n+1)
		for j := 0; j < n; j++ {
			a[i][j] = thinPlate(dist(points[i], points[j]))
		}
		a[i][n] = values[i]
	}

	weights, err := gaussianEliminate(a)
	if err != nil {
		return nil, err
	}
	return &tpsSolver{points: points, weights: weights}, nil
}

// Eval evaluates the spline at (x, y).
func (s *tpsSolver) Eval(x, y float64) float64 {
	p := Point{X: x, Y: y}
	var sum float64
	for i, cp := range s.points {
		sum += s.weights[i] * thinPlate(dist(p, cp))
	}
	return sum
}

// gaussianEliminate solves the augmented system in place with partial
// pivoting. Each row holds n coefficients plus the right-hand side.
func gaussianEliminate(a [][]float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		// Pivot on the largest magnitude in this column.
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, schema.NewError(schema.ErrCodeValidation, "singular control point system")
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for k := col; k <= n; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := a[row][n]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
