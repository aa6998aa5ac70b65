package twig

import (
	"errors"
	"fmt"
	"math"
)

func builtinFunctions() map[string]FunctionFunc {
	return map[string]FunctionFunc{
		"include":  includeFunction,
		"range":    rangeFunction,
		"max":      maxFunction,
		"min":      minFunction,
		"cycle":    cycleFunction,
		"constant": constantFunction,
	}
}

// includeFunction implements include(template, variables, with_context,
// ignore_missing).
func includeFunction(call *Call) (any, error) {
	target := call.Arg(0, "template", nil)
	variables := call.Arg(1, "variables", nil)
	withContext := truthy(call.Arg(2, "with_context", true))
	ignoreMissing := truthy(call.Arg(3, "ignore_missing", false))

	r, f := call.r, call.f
	tmpl, err := r.resolveTemplate(f, target, call.node, ignoreMissing)
	if err != nil || tmpl == nil {
		return Markup(""), err
	}

	vars := make(map[string]any)
	if withContext {
		vars = cloneVars(f.vars)
	}
	if err := mergeVars(vars, variables); err != nil {
		return nil, call.Errorf("Variables passed to %q must be a mapping", tmpl.Name())
	}

	saved := r.escaping
	r.escaping = []string{r.env.autoescape}
	out, err := r.capture(func() error { return r.display(tmpl, vars, nil) })
	r.escaping = saved
	if err != nil {
		return nil, err
	}
	return Markup(out), nil
}

func rangeFunction(call *Call) (any, error) {
	if len(call.Args) < 2 {
		return nil, call.Errorf("range expects at least 2 arguments")
	}
	values, err := rangeValues(call.Args[0], call.Args[1], call.Arg(2, "step", int64(1)))
	if err != nil {
		return nil, call.Errorf("%v", err)
	}
	return values, nil
}

// rangeValues builds an inclusive sequence of numbers or single characters.
func rangeValues(low, high, step any) ([]any, error) {
	if s, ok := low.(string); ok && len(s) == 1 && !isNumeric(s) {
		hs := toString(high)
		if len(hs) != 1 {
			return nil, fmt.Errorf("range bounds must both be single characters")
		}
		ints, err := rangeValues(int64(s[0]), int64(hs[0]), step)
		if err != nil {
			return nil, err
		}
		for i, v := range ints {
			ints[i] = string(rune(v.(int64)))
		}
		return ints, nil
	}

	if isIntegral(low) && isIntegral(high) && isIntegral(step) {
		lo, hi, st := toInt64(low), toInt64(high), toInt64(step)
		if st < 0 {
			st = -st
		}
		if st == 0 {
			return nil, errors.New("range step cannot be zero")
		}
		var out []any
		if lo <= hi {
			for v := lo; v <= hi; v += st {
				out = append(out, v)
			}
		} else {
			for v := lo; v >= hi; v -= st {
				out = append(out, v)
			}
		}
		return out, nil
	}

	lo, hi, st := toFloat(low), toFloat(high), math.Abs(toFloat(step))
	if st == 0 {
		return nil, errors.New("range step cannot be zero")
	}
	var out []any
	if lo <= hi {
		for v := lo; v <= hi; v += st {
			out = append(out, v)
		}
	} else {
		for v := lo; v >= hi; v -= st {
			out = append(out, v)
		}
	}
	return out, nil
}

func maxFunction(call *Call) (any, error) {
	return extreme(call, 1)
}

func minFunction(call *Call) (any, error) {
	return extreme(call, -1)
}

// extreme returns the greatest (sign 1) or least (sign -1) argument. A single
// iterable argument is searched instead.
func extreme(call *Call, sign int) (any, error) {
	values := call.Args
	if len(values) == 1 && isIterable(values[0]) {
		values = toList(values[0])
	}
	if len(values) == 0 {
		return nil, call.Errorf("the sequence must not be empty")
	}
	best := values[0]
	for _, v := range values[1:] {
		if compare(v, best)*sign > 0 {
			best = v
		}
	}
	return best, nil
}

func cycleFunction(call *Call) (any, error) {
	values := toList(call.Arg(0, "values", nil))
	if len(values) == 0 {
		return nil, nil
	}
	pos := toInt(call.Arg(1, "position", int64(0)))
	pos %= len(values)
	if pos < 0 {
		pos += len(values)
	}
	return values[pos], nil
}

// constantFunction reads a global, the closest equivalent of a class
// constant in this runtime.
func constantFunction(call *Call) (any, error) {
	name := toString(call.Arg(0, "constant", ""))
	v, ok := call.r.env.snapshotGlobals()[name]
	if !ok {
		return nil, call.Errorf("Constant %q is undefined", name)
	}
	return v, nil
}

