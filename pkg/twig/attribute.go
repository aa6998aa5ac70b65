package twig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"mercator-hq/twigpack/pkg/twig/ast"
)

var (
	errDivisionByZero = errors.New("division by zero")
	errModuloByZero   = errors.New("modulo by zero")
)

func errUnknownOperator(op string) error {
	return fmt.Errorf("unknown binary operator %q", op)
}

// getAttribute resolves obj.attr or obj[attr]. found is false when the
// attribute does not exist.
func getAttribute(obj, attr any, callType string, args []any) (any, bool, error) {
	switch o := obj.(type) {
	case nil:
		return nil, false, nil
	case *Hash:
		v, ok := o.Get(toString(attr))
		return v, ok, nil
	case map[string]any:
		v, ok := o[toString(attr)]
		return v, ok, nil
	case []any:
		i, ok := listIndex(attr, len(o))
		if !ok {
			return nil, false, nil
		}
		return o[i], true, nil
	case string, Markup:
		return nil, false, nil
	}

	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, nil
		}
		v := rv.MapIndex(reflect.ValueOf(toString(attr)).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false, nil
		}
		return v.Interface(), true, nil
	case reflect.Slice, reflect.Array:
		i, ok := listIndex(attr, rv.Len())
		if !ok {
			return nil, false, nil
		}
		return rv.Index(i).Interface(), true, nil
	}

	if callType == ast.CallArray {
		return nil, false, nil
	}

	name := toString(attr)
	if name == "" {
		return nil, false, nil
	}
	if callType != ast.CallMethod {
		if v, ok := structField(rv, name); ok {
			return v, true, nil
		}
	}
	return callMethod(rv, name, args)
}

func listIndex(attr any, n int) (int, bool) {
	if !isIntegral(attr) {
		return 0, false
	}
	i := toInt(attr)
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// structField finds an exported field by its name or json tag.
func structField(rv reflect.Value, name string) (any, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if tag == name || strings.EqualFold(field.Name, name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

// callMethod calls an exported method named name, trying the "get" and "is"
// prefixed forms as well.
func callMethod(rv reflect.Value, name string, args []any) (any, bool, error) {
	if !rv.IsValid() {
		return nil, false, nil
	}
	upper := exportName(name)
	var m reflect.Value
	for _, candidate := range []string{upper, "Get" + upper, "Is" + upper} {
		if m = rv.MethodByName(candidate); m.IsValid() {
			break
		}
	}
	if !m.IsValid() {
		return nil, false, nil
	}

	mt := m.Type()
	if !mt.IsVariadic() && len(args) != mt.NumIn() {
		return nil, false, fmt.Errorf("method %q expects %d arguments, got %d", name, mt.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var target reflect.Type
		if mt.IsVariadic() && i >= mt.NumIn()-1 {
			target = mt.In(mt.NumIn() - 1).Elem()
		} else {
			target = mt.In(i)
		}
		v, err := convertArg(a, target)
		if err != nil {
			return nil, false, fmt.Errorf("method %q argument %d: %w", name, i+1, err)
		}
		in[i] = v
	}

	out := m.Call(in)
	switch len(out) {
	case 0:
		return nil, true, nil
	case 1:
		return out[0].Interface(), true, nil
	}
	if last := out[len(out)-1]; last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) && !last.IsNil() {
		return nil, false, last.Interface().(error)
	}
	return out[0].Interface(), true, nil
}

func convertArg(a any, target reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	switch target.Kind() {
	case reflect.String:
		return reflect.ValueOf(toString(a)).Convert(target), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(toInt64(a)).Convert(target), nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(toFloat(a)).Convert(target), nil
	case reflect.Bool:
		return reflect.ValueOf(truthy(a)), nil
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, target)
}

func exportName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}
