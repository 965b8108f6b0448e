// Package chat defines the backend wire representation of chat entities.
//
// Every entity keeps backend fields it does not model in ExtraData, so a
// payload decoded and encoded again loses nothing.
package chat

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// ExtraData holds top-level fields the client does not model explicitly.
type ExtraData map[string]json.RawMessage

// Fields is the set of top-level keys a decoded payload carried.
type Fields map[string]struct{}

// Has reports whether the payload carried key. Nil Fields, as on values built
// in code rather than decoded, report every key as present.
func (f Fields) Has(key string) bool {
	if f == nil {
		return true
	}
	_, ok := f[key]
	return ok
}

var knownFieldsCache sync.Map

// knownFields returns the JSON names declared by struct type t.
func knownFields(t reflect.Type) map[string]struct{} {
	if cached, ok := knownFieldsCache.Load(t); ok {
		return cached.(map[string]struct{})
	}
	fields := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		fields[name] = struct{}{}
	}
	knownFieldsCache.Store(t, fields)
	return fields
}

// unmarshalWithExtra decodes data into v (a pointer to a struct) and returns
// the top-level keys that v does not declare, along with every top-level key
// present.
func unmarshalWithExtra(data []byte, v any) (ExtraData, Fields, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, nil, err
	}
	known := knownFields(reflect.TypeOf(v).Elem())

	var extra ExtraData
	present := Fields{}
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		present[name] = struct{}{}
		if _, ok := known[name]; ok {
			return true
		}
		if extra == nil {
			extra = ExtraData{}
		}
		extra[name] = json.RawMessage(value.Raw)
		return true
	})
	return extra, present, nil
}

// marshalWithExtra encodes v and spreads extra back into the top-level object.
// Modeled fields win over extra keys with the same name.
func marshalWithExtra(v any, extra ExtraData) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, exists := merged[k]; !exists {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}
