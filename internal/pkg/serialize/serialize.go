// Package serialize converts arbitrary in-memory values into JSON-safe trees.
//
// The result of Serialize is built only from nil, bool, numbers, string,
// map[string]any and []any, so it can always be handed to encoding/json.
// Reference cycles are cut with the RecursionSentinel string.
//
// Values are classified in a fixed order:
//
//  1. primitives (nil, bool, numbers, strings) are returned unchanged
//  2. structs with exported fields become objects keyed by field name
//  3. named scalar types (enums) become their underlying scalar
//  4. time.Time becomes RFC 3339 text
//  5. byte slices and arrays become base64 text
//  6. maps become objects with text keys
//  7. slices, arrays and sets become arrays
//  8. Loggable and error values are converted through their method
//  9. other structs are introspected field by field
//  10. anything else is rendered as text
package serialize

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unsafe"
)

// RecursionSentinel replaces a value that is already being visited.
const RecursionSentinel = "<recursion>"

// Loggable is implemented by types that know their own plain form.
type Loggable interface {
	LoggableValue() any
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	loggableType = reflect.TypeOf((*Loggable)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

// Serializer walks values. The zero value is ready to use.
type Serializer struct {
	logger *slog.Logger
}

// New returns a Serializer that reports textual fallbacks at debug level.
func New(logger *slog.Logger) *Serializer {
	if logger != nil {
		logger = logger.With("component", "serializer")
	}
	return &Serializer{logger: logger}
}

var std = &Serializer{}

// Serialize converts v with a Serializer that does not log.
func Serialize(v any) any {
	return std.Serialize(v)
}

// Serialize converts v into a JSON-safe tree. It never panics for values
// built in this process.
func (s *Serializer) Serialize(v any) any {
	w := walker{s: s, visiting: make(map[identity]struct{})}
	return w.walk(reflect.ValueOf(v))
}

// identity is the reference identity of a compound value.
type identity struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type walker struct {
	s        *Serializer
	visiting map[identity]struct{}
}

// enter marks id as being visited; it reports false on re-entry.
func (w *walker) enter(id identity) bool {
	if _, ok := w.visiting[id]; ok {
		return false
	}
	w.visiting[id] = struct{}{}
	return true
}

func (w *walker) leave(id identity) {
	delete(w.visiting, id)
}

func (w *walker) walk(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return w.walk(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		id := identity{ptr: v.Pointer(), typ: v.Type()}
		if !w.enter(id) {
			return RecursionSentinel
		}
		defer w.leave(id)
		return w.walk(v.Elem())
	}

	if out, ok := primitive(v); ok {
		return out
	}
	if out, ok := w.record(v); ok {
		return out
	}
	if out, ok := enum(v); ok {
		return out
	}
	if v.Type() == timeType {
		return timeOf(v).Format(time.RFC3339Nano)
	}
	if out, ok := rawBytes(v); ok {
		return out
	}

	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		id := identity{ptr: v.Pointer(), typ: v.Type()}
		if !w.enter(id) {
			return RecursionSentinel
		}
		defer w.leave(id)
		if isSet(v.Type()) {
			return w.set(v)
		}
		return w.mapping(v)
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Len() > 0 {
			id := identity{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}
			if !w.enter(id) {
				return RecursionSentinel
			}
			defer w.leave(id)
		}
		return w.sequence(v)
	case reflect.Array:
		return w.sequence(v)
	}

	if out, ok := w.plainForm(v); ok {
		return out
	}
	if v.Kind() == reflect.Struct {
		return w.introspect(v)
	}
	return w.text(v)
}

// Layout of time.Time's wall and ext words.
const (
	hasMonotonic   = 1 << 63
	nsecMask       = 1<<30 - 1
	nsecShift      = 30
	wallToInternal = 59453308800
	unixToInternal = 62135596800
)

// timeOf reads a time.Time even when it was reached through an unexported
// field.
func timeOf(v reflect.Value) time.Time {
	if v.CanInterface() {
		return v.Interface().(time.Time)
	}
	if v.CanAddr() {
		return *(*time.Time)(unsafe.Pointer(v.UnsafeAddr()))
	}
	wall := v.FieldByName("wall").Uint()
	sec := v.FieldByName("ext").Int()
	if wall&hasMonotonic != 0 {
		sec = wallToInternal + int64(wall<<1>>(nsecShift+1))
	}
	t := time.Unix(sec-unixToInternal, int64(wall&nsecMask)).UTC()
	if loc := v.FieldByName("loc"); !loc.IsNil() {
		t = t.In((*time.Location)(loc.UnsafePointer()))
	}
	return t
}

func primitive(v reflect.Value) (any, bool) {
	if v.Type().PkgPath() != "" {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.CanInterface() {
			return v.Interface(), true
		}
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.CanInterface() {
			return v.Interface(), true
		}
		return v.Uint(), true
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64), true
		}
		if v.CanInterface() {
			return v.Interface(), true
		}
		return v.Float(), true
	case reflect.String:
		return v.String(), true
	}
	return nil, false
}

// enum handles named scalar types.
func enum(v reflect.Value) (any, bool) {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64), true
		}
		return f, true
	case reflect.String:
		return v.String(), true
	}
	return nil, false
}

func rawBytes(v reflect.Value) (any, bool) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	if v.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}
	if v.Kind() == reflect.Slice && v.IsNil() {
		return nil, true
	}
	buf := make([]byte, v.Len())
	for i := range buf {
		buf[i] = byte(v.Index(i).Uint())
	}
	return base64.StdEncoding.EncodeToString(buf), true
}

// record converts structs that expose at least one exported field.
func (w *walker) record(v reflect.Value) (any, bool) {
	if v.Kind() != reflect.Struct || !hasExportedField(v.Type()) {
		return nil, false
	}
	out := make(map[string]any, v.NumField())
	w.fields(v, out)
	return out, true
}

func hasExportedField(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func (w *walker) fields(v reflect.Value, out map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, skip := fieldName(f)
		if skip {
			continue
		}
		fv := v.Field(i)
		if f.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && inner.Type() != timeType {
				w.fields(inner, out)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = w.walk(fv)
	}
}

// fieldName returns the json tag name, if any, and whether the field is excluded.
func fieldName(f reflect.StructField) (string, bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return "", false
	}
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}

func isSet(t reflect.Type) bool {
	e := t.Elem()
	return e.Kind() == reflect.Struct && e.NumField() == 0
}

type mapEntry struct {
	key   string
	order string
	k     reflect.Value
	value reflect.Value
}

func (w *walker) keyText(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(w.walk(k))
}

func (w *walker) sortedEntries(v reflect.Value) []mapEntry {
	entries := make([]mapEntry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key()
		kt := k
		if kt.Kind() == reflect.Interface && !kt.IsNil() {
			kt = kt.Elem()
		}
		entries = append(entries, mapEntry{
			key:   w.keyText(k),
			order: kt.Type().String(),
			k:     k,
			value: iter.Value(),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].order < entries[j].order
	})
	return entries
}

// mapping coerces keys to text; when two keys coerce to the same text the
// later one in sorted order wins.
func (w *walker) mapping(v reflect.Value) any {
	out := make(map[string]any, v.Len())
	for _, e := range w.sortedEntries(v) {
		out[e.key] = w.walk(e.value)
	}
	return out
}

func (w *walker) set(v reflect.Value) any {
	entries := w.sortedEntries(v)
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, w.walk(e.k))
	}
	return out
}

func (w *walker) sequence(v reflect.Value) any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = w.walk(v.Index(i))
	}
	return out
}

// plainForm delegates to Loggable or error implementations.
func (w *walker) plainForm(v reflect.Value) (any, bool) {
	target := v
	if !implementsPlainForm(target.Type()) && v.CanAddr() && implementsPlainForm(reflect.PointerTo(v.Type())) {
		target = v.Addr()
	}
	if !target.CanInterface() || !implementsPlainForm(target.Type()) {
		return nil, false
	}
	switch x := target.Interface().(type) {
	case Loggable:
		return w.walk(reflect.ValueOf(x.LoggableValue())), true
	case error:
		return x.Error(), true
	}
	return nil, false
}

func implementsPlainForm(t reflect.Type) bool {
	return t.Implements(loggableType) || t.Implements(errorType)
}

// introspect is the escape hatch for structs whose state is only held in
// unexported fields.
func (w *walker) introspect(v reflect.Value) any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		out[t.Field(i).Name] = w.walk(v.Field(i))
	}
	if w.s.logger != nil {
		w.s.logger.Debug("introspected value without exported fields", "type", t.String())
	}
	return out
}

func (w *walker) text(v reflect.Value) string {
	if w.s.logger != nil {
		w.s.logger.Debug("falling back to textual rendering", "type", v.Type().String(), "kind", v.Kind().String())
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return "<" + v.Type().String() + ">"
	}
	if v.CanInterface() {
		return fmt.Sprintf("%v", v.Interface())
	}
	return "<" + v.Type().String() + ">"
}
