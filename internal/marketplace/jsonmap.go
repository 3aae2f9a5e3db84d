package marketplace

import (
	"encoding/json"
	"fmt"

	"github.com/antigravity-dev/ccos/internal/values"
)

// ValueToJSON projects a runtime Value to plain JSON-compatible data so
// Value-in/Value-out capabilities can cross an HTTP, MCP, or plugin
// boundary that only understands JSON.
func ValueToJSON(v values.Value) (interface{}, error) {
	switch vv := v.(type) {
	case values.Nil:
		return nil, nil
	case values.Boolean:
		return bool(vv), nil
	case values.Int:
		return int64(vv), nil
	case values.Float:
		return float64(vv), nil
	case values.Str:
		return string(vv), nil
	case values.Keyword:
		return string(vv), nil
	case values.Symbol:
		return string(vv), nil
	case values.Vector:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			conv, err := ValueToJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case values.List:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			conv, err := ValueToJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case values.Map:
		out := make(map[string]interface{}, len(vv))
		for k, e := range vv {
			conv, err := ValueToJSON(e)
			if err != nil {
				return nil, err
			}
			out[k.String()] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("marketplace: value of type %s is not JSON-representable", values.TypeName(v))
	}
}

// JSONToValue reverses ValueToJSON for a decoded json.Unmarshal result
// (map[string]interface{}/[]interface{}/float64/string/bool/nil).
func JSONToValue(data interface{}) values.Value {
	switch d := data.(type) {
	case nil:
		return values.Nil{}
	case bool:
		return values.Boolean(d)
	case float64:
		if d == float64(int64(d)) {
			return values.Int(int64(d))
		}
		return values.Float(d)
	case json.Number:
		if i, err := d.Int64(); err == nil {
			return values.Int(i)
		}
		f, _ := d.Float64()
		return values.Float(f)
	case string:
		return values.Str(d)
	case []interface{}:
		out := make(values.Vector, len(d))
		for i, e := range d {
			out[i] = JSONToValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(values.Map, len(d))
		for k, e := range d {
			out[values.StringKey(k)] = JSONToValue(e)
		}
		return out
	default:
		return values.Nil{}
	}
}

// MarshalArgs encodes a capability's argument vector as a JSON array.
func MarshalArgs(args []values.Value) ([]byte, error) {
	conv := make([]interface{}, len(args))
	for i, a := range args {
		v, err := ValueToJSON(a)
		if err != nil {
			return nil, err
		}
		conv[i] = v
	}
	return json.Marshal(conv)
}

// UnmarshalResult decodes a JSON response body into a runtime Value.
func UnmarshalResult(body []byte) (values.Value, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("marketplace: decode result: %w", err)
	}
	return JSONToValue(data), nil
}
