// Package objectives provides the built-in benchmark objective functions the
// server exposes by name, and that the engine's tests exercise.
package objectives

import (
	"fmt"
	"math"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// Benchmark pairs an objective with its conventional per-coordinate bounds.
type Benchmark struct {
	// Name is the registry key
	Name string
	// Func is the objective
	Func optimization.ObjectiveFunction
	// Lower and Upper are the conventional bounds for one coordinate
	Lower float64
	Upper float64
}

// Sphere is the convex bowl sum(x_i^2), minimum 0 at the origin.
func Sphere(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// ShiftedSphere returns sum((x_i - c)^2), minimum 0 at x_i = c.
func ShiftedSphere(c float64) optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		sum := 0.0
		for _, v := range x {
			d := v - c
			sum += d * d
		}
		return sum, nil
	}
}

// Rosenbrock is the classic banana valley, minimum 0 at (1, ..., 1).
func Rosenbrock(x []float64) (float64, error) {
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum, nil
}

// Rastrigin is a highly multimodal function, minimum 0 at the origin.
func Rastrigin(x []float64) (float64, error) {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum, nil
}

// Ackley is a multimodal function with a nearly flat outer region, minimum 0
// at the origin.
func Ackley(x []float64) (float64, error) {
	n := float64(len(x))
	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E, nil
}

// Eggholder is a difficult 2D function; minimum about -959.64 at
// (512, 404.23). Evaluating it with a dimensionality other than 2 fails.
func Eggholder(x []float64) (float64, error) {
	if len(x) != 2 {
		return 0, fmt.Errorf("eggholder requires exactly 2 dimensions, got %d", len(x))
	}
	a := x[1] + 47
	return -a*math.Sin(math.Sqrt(math.Abs(x[0]/2+a))) -
		x[0]*math.Sin(math.Sqrt(math.Abs(x[0]-a))), nil
}

var registry = map[string]Benchmark{
	"sphere":     {Name: "sphere", Func: Sphere, Lower: -10, Upper: 10},
	"rosenbrock": {Name: "rosenbrock", Func: Rosenbrock, Lower: -5, Upper: 10},
	"rastrigin":  {Name: "rastrigin", Func: Rastrigin, Lower: -5.12, Upper: 5.12},
	"ackley":     {Name: "ackley", Func: Ackley, Lower: -32.768, Upper: 32.768},
	"eggholder":  {Name: "eggholder", Func: Eggholder, Lower: -512, Upper: 512},
}

// Lookup returns the named benchmark.
func Lookup(name string) (Benchmark, bool) {
	b, ok := registry[name]
	return b, ok
}

// Names returns the registered benchmark names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
