package optimizer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

var decimalComma = regexp.MustCompile(`(\d),(\d)`)

// Func — интерфейс для абстрактной функции f(x)
type Func interface {
	Eval(x float64) (float64, error)
}

// FuncOf оборачивает обычную функцию в Func
type FuncOf func(float64) float64

func (f FuncOf) Eval(x float64) (float64, error) {
	return f(x), nil
}

// evalFunc — реализация Func на основе govaluate
type evalFunc struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// NewEvalFunc создаёт вычислимую функцию по строке f(x)
func NewEvalFunc(expr string) (Func, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"sin": func(args ...interface{}) (interface{}, error) { return math.Sin(toFloat(args[0])), nil },
		"cos": func(args ...interface{}) (interface{}, error) { return math.Cos(toFloat(args[0])), nil },
		"tan": func(args ...interface{}) (interface{}, error) { return math.Tan(toFloat(args[0])), nil },
		"exp": func(args ...interface{}) (interface{}, error) { return math.Exp(toFloat(args[0])), nil },
		"log": func(args ...interface{}) (interface{}, error) { return math.Log(toFloat(args[0])), nil },
		"sqrt": func(args ...interface{}) (interface{}, error) {
			return math.Sqrt(toFloat(args[0])), nil
		},
		"abs": func(args ...interface{}) (interface{}, error) {
			return math.Abs(toFloat(args[0])), nil
		},
		"pow": func(args ...interface{}) (interface{}, error) {
			return math.Pow(toFloat(args[0]), toFloat(args[1])), nil
		},
	}

	expr = normalizeExpr(expr)
	if expr == "" {
		return nil, fmt.Errorf("пустое выражение")
	}

	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
	if err != nil {
		return nil, err
	}

	return &evalFunc{src: expr, expr: parsed}, nil
}

// normalizeExpr приводит запись к синтаксису govaluate:
// десятичная запятая между цифрами -> точка, x^n -> x**n.
// Числовые аргументы pow разделяются пробелом: pow(2, 3).
func normalizeExpr(expr string) string {
	expr = strings.TrimSpace(expr)
	expr = decimalComma.ReplaceAllString(expr, "$1.$2")
	return strings.ReplaceAll(expr, "^", "**")
}

// String возвращает нормализованное выражение
func (f *evalFunc) String() string {
	return f.src
}

// Eval безопасен для параллельных вызовов: параметры создаются на каждый вызов
func (f *evalFunc) Eval(x float64) (float64, error) {
	v, err := f.expr.Evaluate(map[string]interface{}{"x": x})
	if err != nil {
		return math.NaN(), err
	}

	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN(), err
		}
		return parsed, nil
	default:
		return math.NaN(), fmt.Errorf("выражение не вернуло число: %T", v)
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return math.NaN()
	}
}
