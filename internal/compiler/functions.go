package compiler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Func 是可在样式值中调用的扩展函数，参数与返回值均为去掉单位的数值。
type Func func(args []float64) (float64, error)

var errArity = errors.New("wrong number of arguments")

var builtins = map[string]Func{
	"rand":  randFunc,
	"pow":   binary(math.Pow),
	"sqrt":  unary(math.Sqrt),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"min":   fold(math.Min),
	"max":   fold(math.Max),
}

// LookupBuiltin 按名称查找内置函数。
func LookupBuiltin(name string) (Func, bool) {
	fn, ok := builtins[name]
	return fn, ok
}

func unary(fn func(float64) float64) Func {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("%w: want 1, got %d", errArity, len(args))
		}
		return fn(args[0]), nil
	}
}

func binary(fn func(float64, float64) float64) Func {
	return func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("%w: want 2, got %d", errArity, len(args))
		}
		return fn(args[0], args[1]), nil
	}
}

func fold(fn func(float64, float64) float64) Func {
	return func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("%w: want at least 1", errArity)
		}
		acc := args[0]
		for _, v := range args[1:] {
			acc = fn(acc, v)
		}
		return acc, nil
	}
}

// randFunc 无参数时返回 [0,1) 随机数；两个参数时返回闭区间内的整数。
func randFunc(args []float64) (float64, error) {
	switch len(args) {
	case 0:
		return rand.Float64(), nil
	case 2:
		lo, hi := math.Ceil(args[0]), math.Floor(args[1])
		if hi < lo {
			return 0, fmt.Errorf("rand: empty range [%v, %v]", args[0], args[1])
		}
		return lo + float64(rand.Int64N(int64(hi-lo)+1)), nil
	default:
		return 0, fmt.Errorf("%w: want 0 or 2, got %d", errArity, len(args))
	}
}
