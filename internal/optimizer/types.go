package optimizer

import "errors"

// Iter — одна итерация метода бисекции: отрезок [A, B] до сужения и его середина
type Iter struct {
	K     int     `json:"k"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	XMid  float64 `json:"xmid"`
	FXMid float64 `json:"fxmid"`
	Len   float64 `json:"len"`
}

// ErrStopped — специальная ошибка для принудительной остановки
var ErrStopped = errors.New("bisection: stopped by callback")

// Kind классифицирует ошибку решателя для внешних интерфейсов
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, ErrNoSignChange):
		return "no_sign_change"
	case errors.Is(err, ErrNotConverged):
		return "not_converged"
	case errors.Is(err, ErrStopped):
		return "stopped"
	case errors.Is(err, ErrEval):
		return "eval"
	default:
		return "unknown"
	}
}
