package operators

import (
	"context"
	"strings"
	"testing"

	"forgeline/anvil/pkg/rules/plugin"
)

func registry() *plugin.Registry {
	reg := plugin.NewRegistry()
	Register(reg)
	return reg
}

func check(t *testing.T, op string, args map[string]interface{}) (bool, error) {
	t.Helper()
	o, ok := registry().Operator(op)
	if !ok {
		t.Fatalf("operator %q not registered", op)
	}
	return o.Check(context.Background(), &plugin.ExecContext{}, args)
}

func mustCheck(t *testing.T, op string, args map[string]interface{}) bool {
	t.Helper()
	got, err := check(t, op, args)
	if err != nil {
		t.Fatalf("%s check failed: %v", op, err)
	}
	return got
}

func TestCompareOperators(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args map[string]interface{}
		want bool
	}{
		{name: "eq numbers equal", op: "eq", args: vals(4, 4.0), want: true},
		{name: "eq numbers differ", op: "eq", args: vals(4, 5), want: false},
		{name: "eq strings", op: "eq", args: vals("uefi", "uefi"), want: true},
		{name: "eq force strings", op: "eq", args: map[string]interface{}{
			"values": []interface{}{4, "4"}, "force_strings": true}, want: true},
		{name: "eq mixed without coercion", op: "eq", args: vals(4, "4"), want: true},
		{name: "lt true", op: "lt", args: vals(3, 5), want: true},
		{name: "lt false on equal", op: "lt", args: vals(5, 5), want: false},
		{name: "gt true", op: "gt", args: vals(7, 5), want: true},
		{name: "gt strings", op: "gt", args: vals("b", "a"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustCheck(t, tt.op, tt.args); got != tt.want {
				t.Errorf("%s(%v) = %v, want %v", tt.op, tt.args, got, tt.want)
			}
		})
	}

	if _, err := check(t, "eq", map[string]interface{}{"values": []interface{}{1}}); err == nil {
		t.Error("eq should reject a single-element values list")
	}
	if _, err := check(t, "eq", map[string]interface{}{"values": "nope"}); err == nil {
		t.Error("eq should reject non-sequence values")
	}
}

func vals(a, b interface{}) map[string]interface{} {
	return map[string]interface{}{"values": []interface{}{a, b}}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{name: "nil", value: nil, want: true},
		{name: "empty string", value: "", want: true},
		{name: "None literal", value: "None", want: true},
		{name: "null literal", value: "null", want: true},
		{name: "empty list", value: []interface{}{}, want: true},
		{name: "empty map", value: map[string]interface{}{}, want: true},
		{name: "text", value: "x", want: false},
		{name: "zero", value: 0, want: false},
		{name: "populated list", value: []interface{}{1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustCheck(t, "is-empty", map[string]interface{}{"value": tt.value})
			if got != tt.want {
				t.Errorf("is-empty(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestInNet(t *testing.T) {
	if !mustCheck(t, "in-net", map[string]interface{}{"address": "10.0.0.5", "subnet": "10.0.0.0/24"}) {
		t.Error("10.0.0.5 should be inside 10.0.0.0/24")
	}
	if mustCheck(t, "in-net", map[string]interface{}{"address": "10.1.0.5", "subnet": "10.0.0.0/24"}) {
		t.Error("10.1.0.5 should be outside 10.0.0.0/24")
	}
	if !mustCheck(t, "in-net", map[string]interface{}{"address": "fd00::5", "subnet": "fd00::/64"}) {
		t.Error("IPv6 membership should work")
	}

	if _, err := check(t, "in-net", map[string]interface{}{"address": "10.0.0.5", "subnet": "bogus"}); err == nil {
		t.Error("malformed subnet should raise at evaluation time")
	}
	if _, err := check(t, "in-net", map[string]interface{}{"address": "not-an-ip", "subnet": "10.0.0.0/24"}); err == nil {
		t.Error("malformed address should raise")
	}

	op, _ := registry().Operator("in-net")
	if err := op.Validate(map[string]interface{}{"address": "10.0.0.5", "subnet": "bogus"}); err == nil {
		t.Error("malformed subnet should fail validation")
	}
	if err := op.Validate(map[string]interface{}{"address": "x", "subnet": "{inventory.bmc.subnet}"}); err != nil {
		t.Errorf("templated subnet should pass validation, got %v", err)
	}
}

func TestMatchesIsAnchored(t *testing.T) {
	tests := []struct {
		name  string
		value string
		regex string
		want  bool
	}{
		{name: "full match", value: "PowerEdge R740", regex: "PowerEdge.*", want: true},
		{name: "prefix only does not match", value: "PowerEdge R740", regex: "PowerEdge", want: false},
		{name: "explicit dollar tolerated", value: "R740", regex: "R7.0$", want: true},
		{name: "anchored at start", value: "a PowerEdge", regex: "PowerEdge.*", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustCheck(t, "matches", map[string]interface{}{"value": tt.value, "regex": tt.regex})
			if got != tt.want {
				t.Errorf("matches(%q, %q) = %v, want %v", tt.value, tt.regex, got, tt.want)
			}
		})
	}
}

func TestContainsIsUnanchored(t *testing.T) {
	if !mustCheck(t, "contains", map[string]interface{}{"value": "a PowerEdge node", "regex": "PowerEdge"}) {
		t.Error("contains should find a substring match")
	}
	if mustCheck(t, "contains", map[string]interface{}{"value": "something else", "regex": "PowerEdge"}) {
		t.Error("contains should miss absent patterns")
	}
}

func TestRegexOperators_InvalidPattern(t *testing.T) {
	for _, op := range []string{"matches", "contains"} {
		_, err := check(t, op, map[string]interface{}{"value": "x", "regex": "("})
		if err == nil {
			t.Errorf("%s should fail on an invalid pattern", op)
		}
		if !strings.Contains(err.Error(), "invalid regular expression") {
			t.Errorf("%s should report a structured error, got %v", op, err)
		}

		o, _ := registry().Operator(op)
		if err := o.Validate(map[string]interface{}{"value": "x", "regex": "("}); err == nil {
			t.Errorf("%s should fail validation on an invalid pattern", op)
		}
	}
}

func TestOneOf(t *testing.T) {
	if !mustCheck(t, "one-of", map[string]interface{}{"value": "uefi", "values": []interface{}{"bios", "uefi"}}) {
		t.Error("member should match")
	}
	if mustCheck(t, "one-of", map[string]interface{}{"value": "lava", "values": []interface{}{"bios", "uefi"}}) {
		t.Error("non-member should not match")
	}
	if mustCheck(t, "one-of", map[string]interface{}{"value": "x", "values": []interface{}{}}) {
		t.Error("empty collection never matches")
	}
	if mustCheck(t, "one-of", map[string]interface{}{"value": "x"}) {
		t.Error("absent collection never matches")
	}
	if !mustCheck(t, "one-of", map[string]interface{}{"value": 4, "values": []interface{}{4.0}}) {
		t.Error("numeric membership should ignore Go numeric type")
	}
}

func TestIsNone(t *testing.T) {
	if !mustCheck(t, "is-none", map[string]interface{}{"value": nil}) {
		t.Error("nil is none")
	}
	if !mustCheck(t, "is-none", map[string]interface{}{"value": "None"}) {
		t.Error("the None literal is none")
	}
	if mustCheck(t, "is-none", map[string]interface{}{"value": "none"}) {
		t.Error("lowercase none is not the literal")
	}
	if mustCheck(t, "is-none", map[string]interface{}{"value": 0}) {
		t.Error("zero is not none")
	}
}

func TestIsTrueIsFalse(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		absent    bool
		wantTrue  bool
		wantFalse bool
	}{
		{name: "bool true", value: true, wantTrue: true, wantFalse: false},
		{name: "bool false", value: false, wantTrue: false, wantFalse: true},
		{name: "non-zero", value: 7, wantTrue: true, wantFalse: false},
		{name: "zero", value: 0, wantTrue: false, wantFalse: true},
		{name: "yes string", value: "Yes", wantTrue: true, wantFalse: false},
		{name: "true string", value: "TRUE", wantTrue: true, wantFalse: false},
		{name: "no string", value: "no", wantTrue: false, wantFalse: true},
		{name: "false string", value: "False", wantTrue: false, wantFalse: true},
		{name: "absent", absent: true, wantTrue: false, wantFalse: true},
		{name: "nil", value: nil, wantTrue: false, wantFalse: true},
		{name: "empty string", value: "", wantTrue: false, wantFalse: true},
		{name: "arbitrary string", value: "maybe", wantTrue: false, wantFalse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{}
			if !tt.absent {
				args["value"] = tt.value
			}
			if got := mustCheck(t, "is-true", args); got != tt.wantTrue {
				t.Errorf("is-true(%v) = %v, want %v", tt.value, got, tt.wantTrue)
			}
			if got := mustCheck(t, "is-false", args); got != tt.wantFalse {
				t.Errorf("is-false(%v) = %v, want %v", tt.value, got, tt.wantFalse)
			}
		})
	}
}
