package lifecycle

import "testing"

func TestInterpolateVariableMode(t *testing.T) {
	row := EachRow{
		Named: map[string]interface{}{
			"a":        1,
			"b":        2,
			"expected": 3,
			"user":     map[string]interface{}{"name": "ada", "meta": map[string]interface{}{"x": 1}},
		},
		Index: 4,
	}

	cases := []struct {
		template string
		want     string
	}{
		{"$a + $b = $expected", "1 + 2 = 3"},
		{"row $#", "row 4"},
		{"$user.name logs in", "ada logs in"},
		{"$missing stays", "$missing stays"},
	}
	for _, c := range cases {
		if got := interpolate(c.template, row); got != c.want {
			t.Errorf("interpolate(%q) = %q, want %q", c.template, got, c.want)
		}
	}
}

func TestInterpolateVariableModeCollapsesNestedObjects(t *testing.T) {
	row := EachRow{Named: map[string]interface{}{
		"user": map[string]interface{}{"name": "ada", "meta": map[string]interface{}{"x": 1}},
	}}
	got := interpolate("$user", row)
	if got != `{"meta":"[Object]","name":"ada"}` {
		t.Errorf("got %q", got)
	}
}

func TestInterpolatePrintfMode(t *testing.T) {
	row := EachRow{Positional: []interface{}{"hello", 2.5, 7}, Index: 1}

	cases := []struct {
		template string
		want     string
	}{
		{"%s says %d then %i", "hello says 2.5 then 7"},
		{"row %# done", "row 1 done"},
		{"100%% sure", "100% sure"},
	}
	for _, c := range cases {
		if got := interpolate(c.template, row); got != c.want {
			t.Errorf("interpolate(%q) = %q, want %q", c.template, got, c.want)
		}
	}
}

// Printf mode wins whenever any %[psdifjo#] token appears, even if the
// template also contains $name tokens: those stay literal.
func TestPrintfModeWinsOverVariableTokens(t *testing.T) {
	row := EachRow{
		Named:      map[string]interface{}{"n": 1},
		Positional: []interface{}{map[string]interface{}{"n": 1}},
	}
	got := interpolate("$n squared is %i", row)
	if got != "$n squared is 0" {
		t.Errorf("got %q, want %q", got, "$n squared is 0")
	}
}

func TestInterpolateJSONTokens(t *testing.T) {
	row := EachRow{Positional: []interface{}{map[string]interface{}{"k": "v"}}}
	if got := interpolate("%j", row); got != `{"k":"v"}` {
		t.Errorf("%%j = %q", got)
	}
	row = EachRow{Positional: []interface{}{map[string]interface{}{"k": "v"}}}
	want := "{\n    \"k\": \"v\"\n}"
	if got := interpolate("%p", row); got != want {
		t.Errorf("%%p = %q, want %q", got, want)
	}
}
