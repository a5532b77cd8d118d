package paths

import (
	"errors"
	"reflect"
	"testing"
)

// TestNormalize_Spellings tests dot and slash path spellings.
func TestNormalize_Spellings(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			name: "dot separated",
			path: "a.b.c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "slash separated",
			path: "/a/b/c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "slash without leading slash",
			path: "a/b/c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "trailing slash stripped",
			path: "/a/b/c/",
			want: []string{"a", "b", "c"},
		},
		{
			name: "bare name",
			path: "properties",
			want: []string{"properties"},
		},
		{
			name: "surrounding whitespace",
			path: "  a.b  ",
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.path)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

// TestNormalize_Equivalence verifies the two spellings resolve identically.
func TestNormalize_Equivalence(t *testing.T) {
	if !reflect.DeepEqual(Normalize("a.b.c"), Normalize("/a/b/c")) {
		t.Error("dot and slash spellings should normalize identically")
	}
}

func TestGet(t *testing.T) {
	root := MapGetter{
		"system": map[string]interface{}{
			"product": map[string]interface{}{
				"name": "PowerEdge R740",
			},
		},
		"memory_mb": 65536,
	}

	tests := []struct {
		name    string
		path    string
		want    interface{}
		wantErr bool
	}{
		{
			name: "nested read",
			path: "system.product.name",
			want: "PowerEdge R740",
		},
		{
			name: "slash spelling",
			path: "/system/product/name",
			want: "PowerEdge R740",
		},
		{
			name: "top level",
			path: "memory_mb",
			want: 65536,
		},
		{
			name:    "missing leaf",
			path:    "system.product.serial",
			wantErr: true,
		},
		{
			name:    "missing intermediate",
			path:    "system.chassis.type",
			wantErr: true,
		},
		{
			name:    "descend through scalar",
			path:    "memory_mb.free",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Get(root, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Get(%q): expected error, got %v", tt.path, got)
				}
				var nf *NotFoundError
				if !errors.As(err, &nf) {
					t.Errorf("Get(%q): expected NotFoundError, got %T", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get(%q) failed: %v", tt.path, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Get(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

// TestSet_RoundTrip verifies set-then-get across nesting depths, including
// auto-created intermediates.
func TestSet_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "top level", path: "flag"},
		{name: "two deep", path: "a.b"},
		{name: "deep auto-create", path: "a.b.c.d.e"},
		{name: "slash spelling", path: "/x/y/z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := make(map[string]interface{})
			if err := Set(root, tt.path, "v"); err != nil {
				t.Fatalf("Set(%q) failed: %v", tt.path, err)
			}
			got, err := Get(MapGetter(root), tt.path)
			if err != nil {
				t.Fatalf("Get(%q) after Set failed: %v", tt.path, err)
			}
			if got != "v" {
				t.Errorf("Get(%q) = %v, want %q", tt.path, got, "v")
			}
		})
	}
}

func TestSet_ScalarIntermediate(t *testing.T) {
	root := map[string]interface{}{"a": 42}
	if err := Set(root, "a.b", "v"); err == nil {
		t.Error("Set through a scalar intermediate should fail")
	}
}

func TestDelete(t *testing.T) {
	root := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{"c": 1},
		},
	}

	if err := Delete(root, "a.b.c"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := Get(MapGetter(root), "a.b.c"); err == nil {
		t.Error("deleted path should no longer resolve")
	}

	if err := Delete(root, "a.missing.c"); err == nil {
		t.Error("Delete through a missing intermediate should fail")
	}
	var nf *NotFoundError
	if err := Delete(root, "a.b.c"); !errors.As(err, &nf) {
		t.Errorf("Delete of absent leaf should return NotFoundError, got %v", err)
	}
}
