package mask

import (
	"reflect"
	"testing"
)

func testInventory() map[string]interface{} {
	return map[string]interface{}{
		"hostname": "node-01",
		"password": "hunter2",
		"bmc": map[string]interface{}{
			"address":      "10.0.0.9",
			"bmc_password": "secret",
		},
		"nics": []interface{}{
			map[string]interface{}{
				"mac":        "aa:bb:cc:dd:ee:ff",
				"auth_token": "tok",
			},
		},
	}
}

func TestMap_MasksAtAnyDepth(t *testing.T) {
	state := NewState([]string{"password", "bmc_password", "auth_token"})
	view := NewMap(testInventory(), state)

	if got := view.Get("password"); got != Marker {
		t.Errorf("top-level sensitive key = %v, want marker", got)
	}
	if got := view.Get("hostname"); got != "node-01" {
		t.Errorf("non-sensitive key = %v, want node-01", got)
	}

	bmc, ok := view.Get("bmc").(*Map)
	if !ok {
		t.Fatalf("nested map should be wrapped, got %T", view.Get("bmc"))
	}
	if got := bmc.Get("bmc_password"); got != Marker {
		t.Errorf("nested sensitive key = %v, want marker", got)
	}
	if got := bmc.Get("address"); got != "10.0.0.9" {
		t.Errorf("nested non-sensitive key = %v, want address", got)
	}

	nics, ok := view.Get("nics").(*List)
	if !ok {
		t.Fatalf("nested list should be wrapped, got %T", view.Get("nics"))
	}
	nic, ok := nics.Index(0).(*Map)
	if !ok {
		t.Fatalf("map in list should be wrapped, got %T", nics.Index(0))
	}
	if got := nic.Get("auth_token"); got != Marker {
		t.Errorf("sensitive key inside list = %v, want marker", got)
	}
}

func TestMap_ToggleIsIdempotentAndNonMutating(t *testing.T) {
	data := testInventory()
	state := NewState([]string{"password"})
	view := NewMap(data, state)

	state.Disable()
	if got := view.Get("password"); got != "hunter2" {
		t.Errorf("disabled mask = %v, want raw value", got)
	}
	state.Disable() // repeated toggle is a no-op
	state.Enable()
	state.Enable()
	if got := view.Get("password"); got != Marker {
		t.Errorf("re-enabled mask = %v, want marker", got)
	}

	if data["password"] != "hunter2" {
		t.Error("masking must never mutate underlying data")
	}
}

func TestMap_ReadContract(t *testing.T) {
	state := NewState([]string{"password"})
	view := NewMap(testInventory(), state)

	if !view.Contains("password") {
		t.Error("Contains should see sensitive keys")
	}
	if view.Contains("absent") {
		t.Error("Contains should not invent keys")
	}
	if view.Len() != 4 {
		t.Errorf("Len = %d, want 4", view.Len())
	}
	if len(view.Keys()) != 4 {
		t.Errorf("Keys length = %d, want 4", len(view.Keys()))
	}

	seen := map[string]interface{}{}
	view.Iterate(func(k string, v interface{}) bool {
		seen[k] = v
		return true
	})
	if seen["password"] != Marker {
		t.Error("Iterate should deliver masked values")
	}
	if len(seen) != 4 {
		t.Errorf("Iterate visited %d entries, want 4", len(seen))
	}
}

func TestMap_WritesPassThrough(t *testing.T) {
	data := map[string]interface{}{}
	view := NewMap(data, NewState([]string{"password"}))

	view.Set("password", "plaintext")
	if data["password"] != "plaintext" {
		t.Error("writes must reach underlying data unredacted")
	}
	if view.Get("password") != Marker {
		t.Error("reads of written sensitive keys are still masked")
	}
}

func TestList_Iterate(t *testing.T) {
	state := NewState(nil)
	list := NewList([]interface{}{1, 2, 3}, state)

	var got []interface{}
	list.Iterate(func(_ int, v interface{}) bool {
		got = append(got, v)
		return len(got) < 2
	})
	if !reflect.DeepEqual(got, []interface{}{1, 2}) {
		t.Errorf("Iterate with early stop = %v", got)
	}
	if list.Len() != 3 {
		t.Errorf("Len = %d, want 3", list.Len())
	}
}
