package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrInvalidField is wrapped by every failure of the field validators below.
var ErrInvalidField = errors.New("invalid config field")

// A field path names a field the way the config file does, one key per
// level joined by dots: "runtime.repoll_interval_ms". Go field names
// ("Runtime.RepollIntervalMs") resolve too.

// RequiredFields fails when any of the given fields holds its zero value.
func RequiredFields(paths ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		var missing []string
		for _, path := range paths {
			f, err := lookupField(config, path)
			if err != nil {
				return err
			}
			if f.value.IsZero() {
				missing = append(missing, f.key)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: required: %s", ErrInvalidField, strings.Join(missing, ", "))
		}
		return nil
	})
}

// RangeValidator fails when a numeric field lies outside [min, max].
func RangeValidator(path string, min, max float64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		f, err := lookupField(config, path)
		if err != nil {
			return err
		}

		var n float64
		switch f.value.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = float64(f.value.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = float64(f.value.Uint())
		case reflect.Float32, reflect.Float64:
			n = f.value.Float()
		default:
			return fmt.Errorf("%w: %s is %s, not a number", ErrInvalidField, f.key, f.value.Kind())
		}

		if n < min || n > max {
			return fmt.Errorf("%w: %s = %g, want [%g, %g]", ErrInvalidField, f.key, n, min, max)
		}
		return nil
	})
}

// StringLengthValidator fails when a string field's length lies outside
// [minLen, maxLen].
func StringLengthValidator(path string, minLen, maxLen int) Validator {
	return ValidatorFunc(func(config interface{}) error {
		f, err := lookupField(config, path)
		if err != nil {
			return err
		}
		if f.value.Kind() != reflect.String {
			return fmt.Errorf("%w: %s is %s, not a string", ErrInvalidField, f.key, f.value.Kind())
		}
		if n := len(f.value.String()); n < minLen || n > maxLen {
			return fmt.Errorf("%w: %s has length %d, want [%d, %d]", ErrInvalidField, f.key, n, minLen, maxLen)
		}
		return nil
	})
}

// OneOfValidator fails unless the field equals one of allowed.
func OneOfValidator(path string, allowed ...interface{}) Validator {
	return ValidatorFunc(func(config interface{}) error {
		f, err := lookupField(config, path)
		if err != nil {
			return err
		}
		v := f.value.Interface()
		for _, a := range allowed {
			if reflect.DeepEqual(v, a) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s = %v, want one of %v", ErrInvalidField, f.key, v, allowed)
	})
}

type field struct {
	key   string // dotted file key, used in messages
	value reflect.Value
}

// lookupField resolves path inside config, which must be a struct or a
// pointer to one.
func lookupField(config interface{}, path string) (field, error) {
	current := reflect.ValueOf(config)
	keys := make([]string, 0, strings.Count(path, ".")+1)

	for _, part := range strings.Split(path, ".") {
		for current.Kind() == reflect.Ptr {
			if current.IsNil() {
				return field{}, fmt.Errorf("%w: %s: nil section", ErrInvalidField, path)
			}
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return field{}, fmt.Errorf("%w: %s: %q is not a section", ErrInvalidField, path, strings.Join(keys, "."))
		}

		sf, ok := structField(current.Type(), part)
		if !ok {
			return field{}, fmt.Errorf("%w: %s: no field %q", ErrInvalidField, path, part)
		}
		keys = append(keys, fileKey(sf))
		current = current.FieldByIndex(sf.Index)
	}
	return field{key: strings.Join(keys, "."), value: current}, nil
}

// structField finds the field named name either by its yaml key or its Go
// name.
func structField(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && fileKey(sf) == name {
			return sf, true
		}
	}
	return t.FieldByName(name)
}

// fileKey is the key a field is written under in a config file.
func fileKey(sf reflect.StructField) string {
	if tag, ok := sf.Tag.Lookup("yaml"); ok {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}
