package raw

import (
	"testing"

	"github.com/momentics/hioload-decode/pool"
)

func TestImage_AllocatesOnConstruction(t *testing.T) {
	img := New(4, 3, 2, nil)
	if got := len(img.Data()); got != 24 {
		t.Fatalf("len(Data) = %d, want 24", got)
	}
	if !img.HasData() {
		t.Error("HasData = false for a sized image")
	}
	img.Discard()
	if img.HasData() || img.Data() != nil {
		t.Error("Discard left data behind")
	}
}

func TestImage_DegenerateSizeHoldsNoData(t *testing.T) {
	img := New(0, 10, 3, nil)
	if img.HasData() {
		t.Error("zero-sized image must not allocate")
	}
}

func TestImage_LastReleaseRecycles(t *testing.T) {
	sp := pool.NewSlabPool(2)
	img := New(64, 64, 4, sp)
	img.Retain()

	img.Release()
	if !img.HasData() {
		t.Fatal("data released while a reference remained")
	}
	img.Release()
	if img.HasData() {
		t.Error("data kept after last release")
	}
	if img.Refs() != 0 {
		t.Errorf("Refs = %d, want 0", img.Refs())
	}
	img.Release()
	if img.Refs() != 0 {
		t.Errorf("over-release changed refs to %d", img.Refs())
	}
	if st := sp.Stats(); st.TotalFree != 1 || st.InUse != 0 {
		t.Errorf("pool stats = %+v, want one free and nothing in use", st)
	}
}
