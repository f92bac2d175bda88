// Package optimizer содержит метод бисекции (половинного деления) для поиска
// корня непрерывной функции на отрезке, где она меняет знак.
//
// Bisect — прямой вызов для обычной Go-функции; Bisection принимает Func
// (например, выражение, разобранное NewEvalFunc) и колбэк onIter,
// получающий каждую итерацию. Допуск Epsilon фиксирован.
//
// Смена знака проверяется сравнением v > 0: точный ноль и NaN считаются
// «не положительными». Ошибки решателя — ErrInvalidInterval, ErrNoSignChange,
// ErrNotConverged; их можно проверять через errors.Is.
package optimizer
