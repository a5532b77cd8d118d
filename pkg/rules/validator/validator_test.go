package validator

import (
	"strings"
	"testing"

	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/actions"
	ruleerrors "forgeline/anvil/pkg/rules/errors"
	"forgeline/anvil/pkg/rules/operators"
	"forgeline/anvil/pkg/rules/plugin"
)

func newRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()
	operators.Register(reg)
	actions.Register(reg, actions.Config{})
	return reg
}

func validRule() map[string]interface{} {
	return map[string]interface{}{
		"description": "tag local-boot nodes",
		"priority":    100,
		"conditions": []interface{}{
			map[string]interface{}{
				"op":   "eq",
				"args": map[string]interface{}{"values": []interface{}{"{node.driver}", "ipmi"}},
			},
		},
		"actions": []interface{}{
			map[string]interface{}{
				"op":   "set-capability",
				"args": map[string]interface{}{"name": "boot_option", "value": "local"},
			},
		},
	}
}

func TestValidateValidRule(t *testing.T) {
	rule, err := Validate(newRegistry(), validRule())
	if err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}
	if rule.Phase != rules.PhaseMain {
		t.Errorf("phase = %q, want default main", rule.Phase)
	}
	if rule.Priority != 100 {
		t.Errorf("priority = %d", rule.Priority)
	}
}

func TestValidateSchemaAbortsSemantic(t *testing.T) {
	raw := validRule()
	raw["bogus"] = true
	raw["priority"] = "high"
	// An unknown op would be a semantic error; it must not be reported
	// while the schema pass fails.
	raw["conditions"].([]interface{})[0].(map[string]interface{})["op"] = "no-such-op"

	_, err := Validate(newRegistry(), raw)
	if err == nil {
		t.Fatal("schema-broken rule accepted")
	}
	list, ok := err.(*ruleerrors.List)
	if !ok {
		t.Fatalf("expected *errors.List, got %T", err)
	}
	if !list.HasType(ruleerrors.TypeSchema) {
		t.Error("missing schema errors")
	}
	if list.HasType(ruleerrors.TypeSemantic) {
		t.Errorf("semantic pass ran despite schema failure: %v", err)
	}
	if !strings.Contains(err.Error(), `unknown rule field "bogus"`) {
		t.Errorf("unknown field not reported: %v", err)
	}
	if !strings.Contains(err.Error(), "priority must be an integer") {
		t.Errorf("priority type not reported: %v", err)
	}
}

func TestValidateSemanticErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(map[string]interface{})
		wantMsg string
	}{
		{
			"unknown phase",
			func(raw map[string]interface{}) { raw["phase"] = "never" },
			`unknown phase "never"`,
		},
		{
			"priority too high",
			func(raw map[string]interface{}) { raw["priority"] = 10000 },
			"out of range",
		},
		{
			"priority negative",
			func(raw map[string]interface{}) { raw["priority"] = -1 },
			"out of range",
		},
		{
			"unknown condition op",
			func(raw map[string]interface{}) {
				raw["conditions"].([]interface{})[0].(map[string]interface{})["op"] = "no-such-op"
			},
			"unknown condition op",
		},
		{
			"double inversion",
			func(raw map[string]interface{}) {
				raw["conditions"].([]interface{})[0].(map[string]interface{})["op"] = "!!eq"
			},
			"multiple inversion markers",
		},
		{
			"unknown action op",
			func(raw map[string]interface{}) {
				raw["actions"].([]interface{})[0].(map[string]interface{})["op"] = "no-such-action"
			},
			"unknown action op",
		},
		{
			"unknown multiple mode",
			func(raw map[string]interface{}) {
				raw["conditions"].([]interface{})[0].(map[string]interface{})["multiple"] = "most"
			},
			`unknown multiple mode "most"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRule()
			tc.mutate(raw)
			_, err := Validate(newRegistry(), raw)
			if err == nil {
				t.Fatal("invalid rule accepted")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestValidateInvertedOpResolves(t *testing.T) {
	raw := validRule()
	raw["conditions"].([]interface{})[0].(map[string]interface{})["op"] = "!eq"
	if _, err := Validate(newRegistry(), raw); err != nil {
		t.Errorf("inverted op rejected: %v", err)
	}
}

func TestValidateMissingActions(t *testing.T) {
	raw := validRule()
	delete(raw, "actions")
	_, err := Validate(newRegistry(), raw)
	if err == nil || !strings.Contains(err.Error(), "non-empty sequence") {
		t.Errorf("actionless rule accepted: %v", err)
	}
}

func TestValidateArgErrors(t *testing.T) {
	raw := validRule()
	raw["conditions"] = []interface{}{
		map[string]interface{}{"op": "matches"},
		map[string]interface{}{
			"op":   "matches",
			"args": map[string]interface{}{"value": "{node.name}", "regex": "([unclosed"},
		},
	}
	_, err := Validate(newRegistry(), raw)
	if err == nil {
		t.Fatal("bad args accepted")
	}
	if !strings.Contains(err.Error(), "missing required argument") {
		t.Errorf("missing args not reported: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid regular expression") {
		t.Errorf("bad regex not reported: %v", err)
	}
}

func TestValidateLoopSuppliesArgs(t *testing.T) {
	raw := validRule()
	raw["actions"] = []interface{}{
		map[string]interface{}{
			"op": "set-attribute",
			"loop": []interface{}{
				map[string]interface{}{"path": "/properties/a", "value": 1},
				map[string]interface{}{"path": "/properties/b", "value": 2},
			},
		},
	}
	if _, err := Validate(newRegistry(), raw); err != nil {
		t.Errorf("loop-supplied args rejected: %v", err)
	}
}

func TestValidateScalarLoopItem(t *testing.T) {
	raw := validRule()
	raw["conditions"] = []interface{}{
		map[string]interface{}{
			"op":   "contains",
			"args": map[string]interface{}{"value": "{item}", "regex": "gpu"},
			"loop": []interface{}{"gpu0", "gpu1"},
		},
	}
	if _, err := Validate(newRegistry(), raw); err != nil {
		t.Errorf("scalar loop rejected: %v", err)
	}
}

func TestValidateRuleBuiltinPriorityExempt(t *testing.T) {
	rule := &rules.Rule{
		Priority: 100000,
		Phase:    rules.PhaseMain,
		BuiltIn:  true,
		Actions: []*rules.Action{
			{Op: "log", Args: map[string]interface{}{"msg": "hello"}},
		},
	}
	if err := ValidateRule(newRegistry(), rule); err != nil {
		t.Errorf("built-in rule held to priority bounds: %v", err)
	}
	rule.BuiltIn = false
	if err := ValidateRule(newRegistry(), rule); err == nil {
		t.Error("out-of-range priority accepted for stored rule")
	}
}
