package inspection

import (
	"context"
	"errors"
	"testing"

	"forgeline/anvil/pkg/rules/paths"
)

func TestNode_FieldRoundTrip(t *testing.T) {
	n := NewNode()

	if err := n.SetField("driver", "redfish"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	got, ok := n.Field("driver")
	if !ok || got != "redfish" {
		t.Errorf("Field(driver) = %v, %v", got, ok)
	}

	if err := n.SetField("uuid", "x"); err == nil {
		t.Error("uuid should be read-only")
	}
	if err := n.SetField("nope", "x"); err == nil {
		t.Error("unknown field should fail")
	}
	if err := n.SetField("properties", "not-a-map"); err == nil {
		t.Error("map field should reject scalars")
	}
}

func TestNode_Traits(t *testing.T) {
	n := NewNode()

	if !n.AddTrait("CUSTOM_GPU") {
		t.Error("first AddTrait should report addition")
	}
	if n.AddTrait("CUSTOM_GPU") {
		t.Error("duplicate AddTrait should be a no-op")
	}
	if !n.HasTrait("CUSTOM_GPU") {
		t.Error("trait should be present")
	}
	if !n.RemoveTrait("CUSTOM_GPU") {
		t.Error("RemoveTrait should report removal")
	}
	if n.RemoveTrait("CUSTOM_GPU") {
		t.Error("removing an absent trait should report false")
	}
}

func TestTask_PortLookup(t *testing.T) {
	port := NewPort("aa:bb:cc:dd:ee:ff")
	task := NewTask(NewNode(), port)

	if got, err := task.Port(port.UUID); err != nil || got != port {
		t.Errorf("lookup by uuid = %v, %v", got, err)
	}
	if got, err := task.Port("aa:bb:cc:dd:ee:ff"); err != nil || got != port {
		t.Errorf("lookup by address = %v, %v", got, err)
	}

	_, err := task.Port("missing")
	var nf *PortNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected PortNotFoundError, got %v", err)
	}
}

func TestSetNestedField(t *testing.T) {
	ctx := context.Background()
	n := NewNode()
	saved := 0
	n.SetSaver(func(context.Context) error { saved++; return nil })

	if err := SetNestedField(ctx, n, "properties/vendor/name", "Dell"); err != nil {
		t.Fatalf("SetNestedField failed: %v", err)
	}
	got, err := GetNestedField(n, "properties.vendor.name")
	if err != nil || got != "Dell" {
		t.Errorf("GetNestedField = %v, %v", got, err)
	}
	if saved != 1 {
		t.Errorf("record saved %d times, want 1", saved)
	}

	// Top-level write.
	if err := SetNestedField(ctx, n, "resource_class", "baremetal-gpu"); err != nil {
		t.Fatalf("top-level SetNestedField failed: %v", err)
	}
	if n.ResourceClass != "baremetal-gpu" {
		t.Errorf("ResourceClass = %q", n.ResourceClass)
	}
}

func TestDeleteNestedField(t *testing.T) {
	ctx := context.Background()
	n := NewNode()
	n.Extra["a"] = map[string]interface{}{"b": 1}

	if err := DeleteNestedField(ctx, n, "extra.a.b"); err != nil {
		t.Fatalf("DeleteNestedField failed: %v", err)
	}
	if _, err := GetNestedField(n, "extra.a.b"); err == nil {
		t.Error("deleted field should not resolve")
	}

	err := DeleteNestedField(ctx, n, "extra.missing.b")
	var nf *paths.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestCapabilities(t *testing.T) {
	ctx := context.Background()
	n := NewNode()

	if err := SetCapability(ctx, n, "boot_mode", "uefi"); err != nil {
		t.Fatalf("SetCapability failed: %v", err)
	}
	if err := SetCapability(ctx, n, "raid_level", "1"); err != nil {
		t.Fatalf("SetCapability failed: %v", err)
	}
	if got := n.Properties["capabilities"]; got != "boot_mode:uefi,raid_level:1" {
		t.Errorf("capability string = %q", got)
	}

	// Replace keeps position.
	if err := SetCapability(ctx, n, "boot_mode", "bios"); err != nil {
		t.Fatalf("SetCapability failed: %v", err)
	}
	if got := n.Properties["capabilities"]; got != "boot_mode:bios,raid_level:1" {
		t.Errorf("capability string after replace = %q", got)
	}

	if v, ok := Capability(n, "raid_level"); !ok || v != "1" {
		t.Errorf("Capability(raid_level) = %q, %v", v, ok)
	}

	if err := UnsetCapability(ctx, n, "boot_mode"); err != nil {
		t.Fatalf("UnsetCapability failed: %v", err)
	}
	if got := n.Properties["capabilities"]; got != "raid_level:1" {
		t.Errorf("capability string after unset = %q", got)
	}

	// Last removal clears the property entirely.
	if err := UnsetCapability(ctx, n, "raid_level"); err != nil {
		t.Fatalf("UnsetCapability failed: %v", err)
	}
	if _, ok := n.Properties["capabilities"]; ok {
		t.Error("empty capability string should remove the property")
	}
}

func TestSetCapabilityNilProperties(t *testing.T) {
	ctx := context.Background()
	n := &Node{UUID: "f7a0a532-21e0-4e0e-9a7d-158b2c5a42b1"}

	if err := SetCapability(ctx, n, "boot_mode", "uefi"); err != nil {
		t.Fatalf("SetCapability failed: %v", err)
	}
	if got := n.Properties["capabilities"]; got != "boot_mode:uefi" {
		t.Errorf("capability string = %q", got)
	}

	if err := UnsetCapability(ctx, &Node{}, "boot_mode"); err != nil {
		t.Fatalf("UnsetCapability on empty node failed: %v", err)
	}
}
