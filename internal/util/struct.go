package util

import (
	"reflect"

	"github.com/pkg/errors"
)

// IsStructInitialized checks that every exported pointer, interface, map, slice or func
// field of the struct s points to is set. Fields tagged `wire:"-"` are skipped.
func IsStructInitialized(s any) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return errors.New("struct is nil")
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return errors.Errorf("expected struct, got %s", val.Kind())
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || field.Tag.Get("wire") == "-" {
			continue
		}

		//nolint:exhaustive // only nilable kinds are checked
		switch val.Field(i).Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if val.Field(i).IsNil() {
				return errors.Errorf("field %s is not initialized", field.Name)
			}
		}
	}

	return nil
}
