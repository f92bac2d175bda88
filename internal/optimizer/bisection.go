package optimizer

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon — допуск по полуширине отрезка и по |f(m)|
const Epsilon = 1e-10

// MaxIterLimit — наибольший бюджет итераций, принимаемый сервером и gRPC.
// Сам решатель бюджет не ограничивает.
const MaxIterLimit = 10000

var (
	// ErrInvalidInterval — нарушено условие a < b
	ErrInvalidInterval = errors.New("bisection: invalid interval")
	// ErrNoSignChange — f(a) и f(b) одного знака (по правилу v > 0)
	ErrNoSignChange = errors.New("bisection: no sign change")
	// ErrNotConverged — исчерпан бюджет итераций
	ErrNotConverged = errors.New("bisection: did not converge")
	// ErrEval — функция не смогла вычислиться в точке
	ErrEval = errors.New("bisection: evaluation failed")
)

// positive — знак значения для проверки смены знака.
// Ноль и NaN считаются «не положительными».
func positive(v float64) bool {
	return v > 0.0
}

// Bisect — поиск корня f на отрезке (a, b) методом бисекции
func Bisect(f func(float64) float64, a, b float64, maxIter int) (float64, error) {
	last, err := Bisection(FuncOf(f), a, b, maxIter, nil)
	if err != nil {
		return math.NaN(), err
	}
	return last.XMid, nil
}

// Bisection — метод половинного деления.
// onIter вызывается на каждой итерации с текущим отрезком [a, b] и серединой;
// если вернёт ErrStopped — алгоритм прерывается. Возвращает итерацию, на которой
// достигнута сходимость (корень в XMid).
func Bisection(
	f Func,
	a, b float64,
	maxIter int,
	onIter func(Iter) error,
) (Iter, error) {
	var last Iter

	if a >= b {
		return last, fmt.Errorf("%w: a < b, a = %v, b = %v", ErrInvalidInterval, a, b)
	}

	fa, err := evalAt(f, a)
	if err != nil {
		return last, err
	}
	fb, err := evalAt(f, b)
	if err != nil {
		return last, err
	}
	if positive(fa) == positive(fb) {
		return last, fmt.Errorf("%w: sign(f(a)) == sign(f(b)), a = %v, b = %v", ErrNoSignChange, a, b)
	}
	// дальше сужение сравнивает f(m) только с f(b), поэтому кэшируется лишь fb

	for k := 0; k < maxIter; k++ {
		m := (a + b) / 2
		fm, err := evalAt(f, m)
		if err != nil {
			return last, err
		}

		last = Iter{
			K:     k,
			A:     a,
			B:     b,
			XMid:  m,
			FXMid: fm,
			Len:   b - a,
		}

		if onIter != nil {
			if err := onIter(last); err != nil {
				if errors.Is(err, ErrStopped) {
					return last, ErrStopped
				}
				return last, err
			}
		}

		if math.Abs(a-b)/2 < Epsilon || math.Abs(fm) < Epsilon {
			return last, nil
		}

		if positive(fm) == positive(fb) {
			b, fb = m, fm
		} else {
			a = m
		}
	}

	return last, fmt.Errorf("%w: max_iter = %d, [a, b] = [%v, %v]", ErrNotConverged, maxIter, a, b)
}

func evalAt(f Func, x float64) (float64, error) {
	v, err := f.Eval(x)
	if err != nil {
		return v, fmt.Errorf("%w: f(%v): %w", ErrEval, x, err)
	}
	return v, nil
}
