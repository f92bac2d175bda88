package main

import (
	"flag"
	"fmt"
	"os"

	"rootfind/internal/optimizer"
)

func main() {
	expr := flag.String("func", "", "функция от x, например \"x^5 + x^4 - 4*x^3 + 3*x^2 - 5\"")
	a := flag.Float64("a", 0, "левый конец отрезка")
	b := flag.Float64("b", 0, "правый конец отрезка")
	maxIter := flag.Int("max-iter", 100, "максимальное число итераций")
	trace := flag.Bool("trace", false, "печатать отрезок на каждой итерации")
	flag.Parse()

	if *expr == "" {
		fmt.Fprintln(os.Stderr, "использование: bisect -func ВЫРАЖЕНИЕ -a A -b B [-max-iter N] [-trace]")
		os.Exit(2)
	}

	f, err := optimizer.NewEvalFunc(*expr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка в выражении функции: %v\n", err)
		os.Exit(2)
	}

	var onIter func(optimizer.Iter) error
	if *trace {
		onIter = func(it optimizer.Iter) error {
			fmt.Printf("%d: [a, b] = [%v, %v]\n", it.K, it.A, it.B)
			return nil
		}
	}

	last, err := optimizer.Bisection(f, *a, *b, *maxIter, onIter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("корень = %v\nf(корень) = %v\nитераций = %d\n", last.XMid, last.FXMid, last.K+1)
}
