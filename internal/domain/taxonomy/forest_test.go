package taxonomy

import (
	"reflect"
	"testing"
)

func specs() []NodeSpec {
	return []NodeSpec{
		{Code: "lighting", Name: "Lighting", DisplayOrder: 2, Active: true, FastColumn: true},
		{Code: "indoor", ParentCode: "lighting", Name: "Indoor", DisplayOrder: 1, Active: true},
		{Code: "recessed", ParentCode: "indoor", Name: "Recessed", DisplayOrder: 1, Active: true},
		{Code: "cables", Name: "Cables", DisplayOrder: 1, Active: true},
	}
}

func TestBuildForest_Paths(t *testing.T) {
	f, err := BuildForest(specs())
	if err != nil {
		t.Fatal(err)
	}

	n, ok := f.Node("recessed")
	if !ok {
		t.Fatal("recessed missing")
	}
	if n.Level() != 2 {
		t.Errorf("level = %d, want 2", n.Level())
	}
	if want := []string{"lighting", "indoor", "recessed"}; !reflect.DeepEqual(n.Path(), want) {
		t.Errorf("path = %v, want %v", n.Path(), want)
	}
	if n.ParentCode() != "indoor" {
		t.Errorf("parent = %s", n.ParentCode())
	}
}

func TestBuildForest_DuplicateCode(t *testing.T) {
	_, err := BuildForest([]NodeSpec{
		{Code: "a", Name: "A", Active: true},
		{Code: "a", Name: "A again", Active: true},
	})
	if err == nil {
		t.Fatal("duplicate code should fail")
	}
}

func TestBuildForest_ParentDeclaredAfterChild(t *testing.T) {
	_, err := BuildForest([]NodeSpec{
		{Code: "child", ParentCode: "parent", Name: "Child", Active: true},
		{Code: "parent", Name: "Parent", Active: true},
	})
	if err == nil {
		t.Fatal("forward parent reference should fail")
	}
}

func TestBuildForest_UnknownParent(t *testing.T) {
	_, err := BuildForest([]NodeSpec{
		{Code: "child", ParentCode: "ghost", Name: "Child", Active: true},
	})
	if err == nil {
		t.Fatal("unknown parent should fail")
	}
}

func TestForest_Ordered(t *testing.T) {
	f, err := BuildForest(specs())
	if err != nil {
		t.Fatal(err)
	}

	var codes []string
	for _, n := range f.Ordered() {
		codes = append(codes, n.Code())
	}
	// Level first, display order within a level.
	want := []string{"cables", "lighting", "indoor", "recessed"}
	if !reflect.DeepEqual(codes, want) {
		t.Errorf("ordered = %v, want %v", codes, want)
	}
}

func TestForest_WithCounts(t *testing.T) {
	f, err := BuildForest(specs())
	if err != nil {
		t.Fatal(err)
	}

	counted := f.WithCounts(map[string]int{"lighting": 7, "indoor": 3})

	n, _ := counted.Node("lighting")
	if n.ItemCount() != 7 {
		t.Errorf("lighting count = %d, want 7", n.ItemCount())
	}
	n, _ = counted.Node("cables")
	if n.ItemCount() != 0 {
		t.Errorf("cables count = %d, want 0", n.ItemCount())
	}

	// The original forest is untouched.
	n, _ = f.Node("lighting")
	if n.ItemCount() != 0 {
		t.Error("WithCounts mutated the source forest")
	}
}

func TestNewNode_Validation(t *testing.T) {
	if _, err := NewNode("", "Name", 0, true, false, nil); err == nil {
		t.Error("empty code should fail")
	}
	if _, err := NewNode("code", "", 0, true, false, nil); err == nil {
		t.Error("empty name should fail")
	}
}
