package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recruitcrm-mcp/internal/recruitcrm"
)

// ArgumentError reports a missing or non-coercible argument.
type ArgumentError struct {
	Param   string
	Missing bool
	Reason  string
}

func (e *ArgumentError) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing required argument %q", e.Param)
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Param, e.Reason)
}

func missing(name string) error { return &ArgumentError{Param: name, Missing: true} }

func invalid(name, format string, a ...any) error {
	return &ArgumentError{Param: name, Reason: fmt.Sprintf(format, a...)}
}

// BuildRequest validates args against d and produces the outbound request.
func BuildRequest(d Definition, args map[string]any) (recruitcrm.Request, error) {
	req := recruitcrm.Request{Service: d.Service, Method: d.Method, Path: d.Path, Query: url.Values{}}
	for k, v := range d.Query {
		req.Query.Set(k, v)
	}
	var body map[string]any
	if len(d.Body) > 0 || !isBodyless(d.Method) {
		body = make(map[string]any)
		for k, v := range d.Body {
			setPath(body, k, cloneJSON(v))
		}
	}

	for _, p := range d.Params {
		if p.required() && args[p.Name] == nil {
			return recruitcrm.Request{}, missing(p.Name)
		}
	}

	for _, p := range d.Params {
		raw := args[p.Name]
		if raw == nil {
			if p.Default == nil {
				if p.Null && p.location() == InBody {
					if body == nil {
						body = make(map[string]any)
					}
					setPath(body, p.field(), nil)
				}
				continue
			}
			raw = cloneJSON(p.Default)
		}
		v, err := coerce(p, raw)
		if err != nil {
			return recruitcrm.Request{}, err
		}
		switch p.location() {
		case InPath:
			s := scalarString(v)
			if s == "" {
				return recruitcrm.Request{}, invalid(p.Name, "must not be empty")
			}
			if strings.Trim(strings.TrimSpace(s), ".") == "" {
				return recruitcrm.Request{}, invalid(p.Name, "%q is not a valid path segment", s)
			}
			req.Path = strings.ReplaceAll(req.Path, "{"+p.Name+"}", url.PathEscape(s))
		case InQuery:
			if list, ok := v.([]any); ok {
				for _, item := range list {
					req.Query.Add(p.field(), scalarString(item))
				}
			} else {
				req.Query.Set(p.field(), scalarString(v))
			}
		default:
			if body == nil {
				body = make(map[string]any)
			}
			if p.Spread {
				for k, fv := range v.(map[string]any) {
					body[k] = fv
				}
				continue
			}
			setPath(body, p.field(), v)
			if len(p.Siblings) > 0 {
				parent := parentPath(p.field())
				for k, sv := range p.Siblings {
					setPath(body, joinPath(parent, k), cloneJSON(sv))
				}
			}
		}
	}
	if body != nil {
		req.Body = body
	}
	if len(req.Query) == 0 {
		req.Query = nil
	}
	return req, nil
}

func isBodyless(method string) bool {
	switch strings.ToUpper(method) {
	case "", "GET", "HEAD", "DELETE":
		return true
	}
	return false
}

func coerce(p Param, v any) (any, error) {
	var (
		out any
		err error
	)
	switch p.Type {
	case TypeArray:
		out, err = coerceArray(p, v)
	case TypeObject:
		out, err = coerceObject(p.Name, v, p.RequiredKeys)
	default:
		out, err = coerceScalar(p.Name, p.Type, v)
	}
	if err != nil {
		return nil, err
	}
	out = reshape(p, out)
	if p.Join != "" {
		if list, ok := out.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, strings.TrimSpace(scalarString(item)))
			}
			out = strings.Join(parts, p.Join)
		}
	}
	if p.Stringify {
		out = scalarString(out)
	}
	return out, nil
}

// reshape applies the item filter, object shape and unwrapping rules of p to a coerced value.
func reshape(p Param, v any) any {
	switch t := v.(type) {
	case []any:
		list := t
		if len(p.Exclude) > 0 {
			list = excludeItems(list, p.Exclude)
		}
		if p.Shape != nil {
			list = p.Shape.applyList(list)
		}
		if p.Unwrap && len(list) == 1 {
			return list[0]
		}
		return list
	case map[string]any:
		if p.Shape != nil {
			return p.Shape.apply(t)
		}
	}
	return v
}

func excludeItems(list []any, exclude map[string][]string) []any {
	out := make([]any, 0, len(list))
next:
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			for field, values := range exclude {
				got := strings.ToLower(strings.TrimSpace(scalarString(m[field])))
				for _, v := range values {
					if got == strings.ToLower(v) {
						continue next
					}
				}
			}
		}
		out = append(out, item)
	}
	return out
}

func (s *Shape) apply(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	if len(s.Keys) > 0 {
		for _, k := range s.Keys {
			if v, ok := m[k]; ok {
				out[k] = v
			} else if d, ok := s.Defaults[k]; ok {
				out[k] = cloneJSON(d)
			} else {
				out[k] = ""
			}
		}
	} else {
		for k, v := range m {
			out[k] = v
		}
		for k, d := range s.Defaults {
			if _, ok := out[k]; !ok {
				out[k] = cloneJSON(d)
			}
		}
	}
	for k, v := range s.Set {
		out[k] = cloneJSON(v)
	}
	for k, inner := range s.Lists {
		switch list := out[k].(type) {
		case []any:
			out[k] = inner.applyList(list)
		case []map[string]any:
			items := make([]any, len(list))
			for i, item := range list {
				items[i] = item
			}
			out[k] = inner.applyList(items)
		}
	}
	return out
}

func (s *Shape) applyList(list []any) []any {
	out := make([]any, len(list))
	for i, item := range list {
		if m, ok := item.(map[string]any); ok {
			out[i] = s.apply(m)
		} else {
			out[i] = item
		}
	}
	return out
}

func coerceArray(p Param, v any) (any, error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []int:
		for _, n := range t {
			items = append(items, n)
		}
	case []map[string]any:
		for _, m := range t {
			items = append(items, m)
		}
	default:
		// a lone scalar stands for a one-element list
		items = []any{v}
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		name := fmt.Sprintf("%s[%d]", p.Name, i)
		var (
			c   any
			err error
		)
		switch p.Items {
		case "":
			c = item
		case TypeObject:
			c, err = coerceObject(name, item, p.RequiredKeys)
		default:
			c, err = coerceScalar(name, p.Items, item)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func coerceObject(name string, v any, required []string) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		if s, isStr := v.(string); isStr {
			// some platforms send nested objects as JSON text
			if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
				return nil, invalid(name, "expected an object")
			}
		} else {
			return nil, invalid(name, "expected an object, got %T", v)
		}
	}
	for _, key := range required {
		if _, ok := m[key]; !ok {
			return nil, missing(name + "." + key)
		}
	}
	return m, nil
}

func coerceScalar(name string, typ ParamType, v any) (any, error) {
	switch typ {
	case TypeString:
		switch t := v.(type) {
		case string:
			return t, nil
		case float64, int, int64, json.Number, bool:
			return scalarString(t), nil
		}
		return nil, invalid(name, "expected a string, got %T", v)
	case TypeInteger:
		n, ok := toInt(v)
		if !ok {
			return nil, invalid(name, "expected an integer, got %v", v)
		}
		return n, nil
	case TypeNumber:
		f, ok := toFloat(v)
		if !ok {
			return nil, invalid(name, "expected a number, got %v", v)
		}
		return f, nil
	case TypeBoolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err == nil {
				return b, nil
			}
		}
		return nil, invalid(name, "expected a boolean, got %v", v)
	case TypeEpoch:
		n, err := toEpoch(v)
		if err != nil {
			return nil, invalid(name, "%v", err)
		}
		return n, nil
	}
	return v, nil
}

func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

var epochLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// toEpoch converts to epoch seconds. Zone-less dates are read as UTC.
func toEpoch(v any) (int64, error) {
	if n, ok := toInt(v); ok {
		return n, nil
	}
	if f, ok := v.(float64); ok {
		return int64(f), nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unsupported type %T for a date", v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q, want epoch seconds, YYYY-MM-DD or RFC3339", s)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case nil:
		return ""
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(buf)
}

func setPath(m map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func parentPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// cloneJSON copies maps and slices so static catalog values are never shared with a request.
func cloneJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneJSON(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return v
}
