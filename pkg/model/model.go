package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/installkit/installkit/pkg/setup"
)

// Kind is the storage class of a field, used by dialects to pick column types.
type Kind string

const (
	KindString Kind = "string"
	KindText   Kind = "text"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
	KindJSON   Kind = "json"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	accountType = reflect.TypeOf((*setup.Account)(nil)).Elem()
)

// Tabler lets a model override its table name.
type Tabler interface {
	TableName() string
}

// Field describes one persisted field of a host model.
type Field struct {
	// Name is the Go field name, the name matched by field detection.
	Name string

	// Column is the storage column name.
	Column string

	Type       reflect.Type
	Kind       Kind
	PrimaryKey bool
	Unique     bool

	// AutoIncrement is set for integer primary keys.
	AutoIncrement bool

	// ReadOnly fields are not directly settable; a Set<Name> method
	// still gives them a mutation capability.
	ReadOnly bool

	index  []int
	setter *reflect.Method
}

// Model is the reflection metadata of a registered host struct.
type Model struct {
	Name   string
	Table  string
	Type   reflect.Type
	Fields []*Field

	byName map[string]*Field
}

// New allocates a zero instance and returns a pointer to it.
func (m *Model) New() reflect.Value {
	return reflect.New(m.Type)
}

// IsAccount reports whether the model implements the auth-identity capability.
func (m *Model) IsAccount() bool {
	return reflect.PointerTo(m.Type).Implements(accountType)
}

// FieldNames returns the declared field names in declaration order.
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field with the given Go name.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// PrimaryKey returns the primary key field, if declared.
func (m *Model) PrimaryKey() *Field {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// CanSet reports whether the field has a mutation capability.
func (f *Field) CanSet() bool {
	return f.setter != nil || !f.ReadOnly
}

// Set assigns value on the instance ptr points to, coercing it to the
// field's type. A Set<Name> method takes precedence over direct assignment.
func (f *Field) Set(ptr reflect.Value, value interface{}) error {
	if f.setter != nil {
		argType := f.setter.Type.In(1)
		v, err := coerce(value, argType)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		f.setter.Func.Call([]reflect.Value{ptr, v})
		return nil
	}

	if f.ReadOnly {
		return fmt.Errorf("field %s has no mutation capability", f.Name)
	}

	v, err := coerce(value, f.Type)
	if err != nil {
		return fmt.Errorf("field %s: %w", f.Name, err)
	}
	ptr.Elem().FieldByIndex(f.index).Set(v)
	return nil
}

// Value returns the field's storage value for the instance ptr points to.
func (f *Field) Value(ptr reflect.Value) (interface{}, error) {
	v := ptr.Elem().FieldByIndex(f.index)
	if f.Kind == KindJSON {
		if v.IsNil() {
			if v.Kind() == reflect.Map {
				return "{}", nil
			}
			return "[]", nil
		}
		data, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return string(data), nil
	}
	if f.Kind == KindTime {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return nil, nil
		}
		return t, nil
	}
	return v.Interface(), nil
}

// coerce converts value to t. Slices and maps assigned to string targets are
// stored as JSON text. Slice targets are built element by element so named
// element types such as []Role are supported.
func coerce(value interface{}, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		var s string
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
			data, err := json.Marshal(value)
			if err != nil {
				return reflect.Value{}, err
			}
			s = string(data)
		} else {
			var err error
			if s, err = cast.ToStringE(value); err != nil {
				return reflect.Value{}, err
			}
		}
		out.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(value)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, t)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(value)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, t)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("value %g overflows %s", f, t)
		}
		out.SetFloat(f)
	case reflect.Slice:
		return coerceSlice(value, t)
	default:
		if t == timeType {
			tm, err := cast.ToTimeE(value)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(tm), nil
		}
		if rv.Type().ConvertibleTo(t) {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", value, t)
	}
	return out, nil
}

// coerceSlice converts a slice, array or scalar into a slice of type t.
func coerceSlice(value interface{}, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	if s, ok := value.(string); ok && t.Elem().Kind() == reflect.Uint8 {
		return reflect.ValueOf([]byte(s)).Convert(t), nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		items, err := cast.ToStringSliceE(value)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot assign %T to %s: %w", value, t, err)
		}
		rv = reflect.ValueOf(items)
	}

	out := reflect.MakeSlice(t, rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := coerce(rv.Index(i).Interface(), t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(elem)
	}
	return out, nil
}

// newModel builds metadata for the struct type behind v.
func newModel(v interface{}) (*Model, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("cannot register nil model")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model %s is not a struct", t)
	}

	m := &Model{
		Name:   t.Name(),
		Table:  ToSnakeCase(t.Name()),
		Type:   t,
		byName: make(map[string]*Field),
	}
	if tabler, ok := reflect.New(t).Interface().(Tabler); ok {
		m.Table = tabler.TableName()
	}

	ptrType := reflect.PointerTo(t)
	collectFields(t, nil, ptrType, m)

	if len(m.Fields) == 0 {
		return nil, fmt.Errorf("model %s declares no persisted fields", m.Name)
	}

	if m.PrimaryKey() == nil {
		if f, ok := m.byName["ID"]; ok {
			f.PrimaryKey = true
		} else if f, ok := m.byName["Id"]; ok {
			f.PrimaryKey = true
		}
	}
	if pk := m.PrimaryKey(); pk != nil && pk.Kind == KindInt {
		pk.AutoIncrement = true
	}

	return m, nil
}

func collectFields(t reflect.Type, parent []int, ptrType reflect.Type, m *Model) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int{}, parent...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Type != timeType {
			collectFields(sf.Type, index, ptrType, m)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")

		f := &Field{
			Name:   sf.Name,
			Column: parts[0],
			Type:   sf.Type,
			Kind:   kindOf(sf.Type),
			index:  index,
		}
		if f.Column == "" {
			f.Column = ToSnakeCase(sf.Name)
		}
		for _, opt := range parts[1:] {
			switch strings.TrimSpace(opt) {
			case "pk":
				f.PrimaryKey = true
			case "unique":
				f.Unique = true
			case "text":
				f.Kind = KindText
			case "readonly":
				f.ReadOnly = true
			}
		}
		if f.Kind == "" {
			continue
		}

		if method, ok := ptrType.MethodByName("Set" + sf.Name); ok && method.Type.NumIn() == 2 {
			f.setter = &method
		}

		m.Fields = append(m.Fields, f)
		m.byName[f.Name] = f
	}
}

func kindOf(t reflect.Type) Kind {
	if t == timeType {
		return KindTime
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Slice, reflect.Map:
		return KindJSON
	default:
		return ""
	}
}

// ToSnakeCase converts a Go identifier to snake_case: FullName -> full_name,
// SMTPHost -> smtp_host.
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper {
			if i > 0 {
				prev := runes[i-1]
				prevLower := (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				prevUpper := prev >= 'A' && prev <= 'Z'
				if prevLower || (prevUpper && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
