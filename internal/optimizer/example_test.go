package optimizer_test

import (
	"errors"
	"fmt"

	"rootfind/internal/optimizer"
)

func ExampleBisect() {
	f := func(x float64) float64 { return x*x - 2 }

	root, err := optimizer.Bisect(f, 0, 2, 100)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%.9f\n", root)

	_, err = optimizer.Bisect(f, 2, 0, 100)
	fmt.Println(errors.Is(err, optimizer.ErrInvalidInterval))
	// Output:
	// 1.414213562
	// true
}

func ExampleBisection() {
	f := optimizer.FuncOf(func(x float64) float64 { return x - 0.75 })

	_, err := optimizer.Bisection(f, 0, 1, 100, func(it optimizer.Iter) error {
		fmt.Printf("%d: [a, b] = [%v, %v]\n", it.K, it.A, it.B)
		return nil
	})
	fmt.Println(err)
	// Output:
	// 0: [a, b] = [0, 1]
	// 1: [a, b] = [0.5, 1]
	// <nil>
}
