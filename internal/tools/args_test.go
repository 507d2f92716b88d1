package tools

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitcrm-mcp/internal/recruitcrm"
)

func TestToEpoch(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{1700000000, 1700000000},
		{float64(1700000000), 1700000000},
		{"1700000000", 1700000000},
		{"2024-01-15", 1705276800},
		{"2024-01-15T10:30:00", 1705314600},
		{"2024-01-15T10:30", 1705314600},
		{"2024-01-15T10:30:00Z", 1705314600},
		{"2024-01-15T12:30:00+02:00", 1705314600},
	}
	for _, tt := range tests {
		got, err := toEpoch(tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}

	_, err := toEpoch("next tuesday")
	require.Error(t, err)
	_, err = toEpoch(true)
	require.Error(t, err)
}

func TestCoerceScalar(t *testing.T) {
	v, err := coerceScalar("n", TypeInteger, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = coerceScalar("n", TypeInteger, 4.5)
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "n", argErr.Param)
	assert.False(t, argErr.Missing)

	v, err = coerceScalar("b", TypeBoolean, "false")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = coerceScalar("b", TypeBoolean, "maybe")
	require.Error(t, err)

	v, err = coerceScalar("s", TypeString, float64(7))
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	v, err = coerceScalar("f", TypeNumber, "1.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestCoerceArray(t *testing.T) {
	p := Param{Name: "ids", Type: TypeArray, Items: TypeInteger}

	v, err := coerceArray(p, []any{1, "2", float64(3)})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, v)

	v, err = coerceArray(p, 9)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(9)}, v)

	_, err = coerceArray(p, []any{1, "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ids[1]"`)
}

func TestCoerceObjectAcceptsJSONText(t *testing.T) {
	v, err := coerceObject("email", `{"recivers":["a@b.c"],"subject":"hi","body":"x"}`, []string{"subject"})
	require.NoError(t, err)
	assert.Equal(t, "hi", v.(map[string]any)["subject"])

	_, err = coerceObject("email", "not json", nil)
	require.Error(t, err)

	_, err = coerceObject("email", map[string]any{"body": "x"}, []string{"subject"})
	require.EqualError(t, err, `missing required argument "email.subject"`)
}

func TestBuildRequest_PathEscaping(t *testing.T) {
	d := Definition{
		Name: "get_thing", Method: http.MethodGet, Service: recruitcrm.ServiceAPI, Path: "/v1/things/{slug}",
		Params: []Param{{Name: "slug", Type: TypeString, In: InPath}},
	}
	req, err := BuildRequest(d, map[string]any{"slug": "a/b c"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/things/a%2Fb%20c", req.Path)
	assert.Nil(t, req.Body)
	assert.Nil(t, req.Query)

	_, err = BuildRequest(d, map[string]any{"slug": ""})
	require.Error(t, err)

	_, err = BuildRequest(d, nil)
	require.EqualError(t, err, `missing required argument "slug"`)
}

func TestBuildRequest_MissingCheckedBeforeCoercion(t *testing.T) {
	d := Definition{
		Name: "range", Method: http.MethodPost, Service: recruitcrm.ServiceAPI, Path: "/range",
		Params: []Param{
			{Name: "from", Type: TypeEpoch, Required: true},
			{Name: "to", Type: TypeEpoch, Required: true},
		},
	}
	_, err := BuildRequest(d, map[string]any{"from": "garbage"})
	require.EqualError(t, err, `missing required argument "to"`)
}

func TestBuildRequest_SiblingsAndStaticBody(t *testing.T) {
	d := Definition{
		Name: "report", Method: http.MethodPost, Service: recruitcrm.ServiceAlbatross, Path: "/report",
		Body: map[string]any{"columns.stagedate.type": "date", "limit": 10},
		Params: []Param{
			{
				Name: "company", Type: TypeString, Field: "columns.company.filter_value",
				Siblings: map[string]any{"filter_type": "contains"},
			},
		},
	}
	req, err := BuildRequest(d, map[string]any{"company": "Acme"})
	require.NoError(t, err)
	body := req.Body.(map[string]any)
	columns := body["columns"].(map[string]any)
	assert.Equal(t, map[string]any{"filter_value": "Acme", "filter_type": "contains"}, columns["company"])
	assert.Equal(t, map[string]any{"type": "date"}, columns["stagedate"])
	assert.Equal(t, 10, body["limit"])

	// siblings only appear when the argument does
	req, err = BuildRequest(d, nil)
	require.NoError(t, err)
	columns = req.Body.(map[string]any)["columns"].(map[string]any)
	assert.NotContains(t, columns, "company")
}

func TestBuildRequest_StaticValuesAreNotShared(t *testing.T) {
	d := Definition{
		Name: "s", Method: http.MethodPost, Service: recruitcrm.ServiceAPI, Path: "/s",
		Body: map[string]any{"filters": map[string]any{"a": 1}},
		Params: []Param{
			{Name: "list", Type: TypeArray, Items: TypeString, Default: []any{"x"}},
		},
	}
	first, err := BuildRequest(d, nil)
	require.NoError(t, err)
	first.Body.(map[string]any)["filters"].(map[string]any)["a"] = 2
	first.Body.(map[string]any)["list"].([]any)[0] = "mutated"

	second, err := BuildRequest(d, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Body.(map[string]any)["filters"].(map[string]any)["a"])
	assert.Equal(t, []any{"x"}, second.Body.(map[string]any)["list"])
}

func TestBuildRequest_SpreadJoinStringify(t *testing.T) {
	d := Definition{
		Name: "mix", Method: http.MethodPost, Service: recruitcrm.ServiceAPI, Path: "/mix",
		Params: []Param{
			{Name: "fields", Type: TypeObject, Spread: true},
			{Name: "tags", Type: TypeArray, Items: TypeString, Join: ","},
			{Name: "stage", Type: TypeInteger, Stringify: true},
			{Name: "ids", Type: TypeArray, Items: TypeInteger, In: InQuery, Field: "id"},
		},
	}
	req, err := BuildRequest(d, map[string]any{
		"fields": map[string]any{"first_name": "Jane", "city": "Paris"},
		"tags":   []string{"go ", " rust"},
		"stage":  float64(3),
		"ids":    []any{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"first_name": "Jane",
		"city":       "Paris",
		"tags":       "go,rust",
		"stage":      "3",
	}, req.Body)
	assert.Equal(t, url.Values{"id": {"1", "2"}}, req.Query)
}

func TestBuildRequest_PostWithoutArgumentsStillSendsBody(t *testing.T) {
	d := Definition{Name: "list", Method: http.MethodPost, Service: recruitcrm.ServiceAPI, Path: "/list"}
	req, err := BuildRequest(d, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, req.Body)
}

func TestShapeApply(t *testing.T) {
	s := &Shape{
		Keys:     []string{"op", "items"},
		Defaults: map[string]any{"op": "AND"},
		Set:      map[string]any{"seen": true},
		Lists:    map[string]*Shape{"items": {Keys: []string{"k"}}},
	}
	got := s.apply(map[string]any{
		"junk":  1,
		"items": []map[string]any{{"k": "v", "other": 2}, {}},
	})
	assert.Equal(t, map[string]any{
		"op":    "AND",
		"seen":  true,
		"items": []any{map[string]any{"k": "v"}, map[string]any{"k": ""}},
	}, got)

	// without Keys everything is kept and only missing defaults are filled
	open := &Shape{Defaults: map[string]any{"op": "AND"}}
	assert.Equal(t, map[string]any{"op": "OR", "x": 1}, open.apply(map[string]any{"op": "OR", "x": 1}))
}

func TestBuildRequest_ExcludeUnwrapNull(t *testing.T) {
	d := Definition{
		Name: "shape", Method: http.MethodPost, Service: recruitcrm.ServiceAPI, Path: "/shape",
		Params: []Param{
			{
				Name: "kpis", Type: TypeArray, Items: TypeObject,
				Exclude: map[string][]string{"value": {"skip"}},
				Shape:   &Shape{Set: map[string]any{"checked": true}},
			},
			{Name: "ids", Type: TypeArray, Items: TypeInteger, Unwrap: true},
			{Name: "company", Type: TypeString, Null: true},
			{Name: "query_only", Type: TypeString, In: InQuery, Null: true},
		},
	}
	req, err := BuildRequest(d, map[string]any{
		"kpis": []any{map[string]any{"value": "SKIP"}, map[string]any{"value": "keep", "checked": false}},
		"ids":  []any{"4"},
	})
	require.NoError(t, err)
	body := req.Body.(map[string]any)
	assert.Equal(t, []any{map[string]any{"value": "keep", "checked": true}}, body["kpis"])
	assert.Equal(t, int64(4), body["ids"])
	assert.Contains(t, body, "company")
	assert.Nil(t, body["company"])
	assert.Nil(t, req.Query)

	req, err = BuildRequest(d, map[string]any{"ids": []any{1, 2}, "company": "Acme"})
	require.NoError(t, err)
	body = req.Body.(map[string]any)
	assert.Equal(t, []any{int64(1), int64(2)}, body["ids"])
	assert.Equal(t, "Acme", body["company"])
	assert.NotContains(t, body, "kpis")
}

func TestBuildRequest_DotSegmentsRejected(t *testing.T) {
	d := Definition{
		Name: "get_thing", Method: http.MethodGet, Service: recruitcrm.ServiceAPI, Path: "/v1/things/{slug}",
		Params: []Param{{Name: "slug", Type: TypeString, In: InPath}},
	}
	for _, slug := range []string{".", "..", "...", " . "} {
		_, err := BuildRequest(d, map[string]any{"slug": slug})
		var argErr *ArgumentError
		require.True(t, errors.As(err, &argErr), "slug %q", slug)
		assert.Equal(t, "slug", argErr.Param)
	}

	req, err := BuildRequest(d, map[string]any{"slug": "v1.2"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/things/v1.2", req.Path)
}
