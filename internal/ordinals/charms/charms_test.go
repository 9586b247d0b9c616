package charms

import (
	"reflect"
	"sort"
	"testing"

	"github.com/rawblock/ordinals-index/internal/ordinals/model"
)

func TestNamesCorpusExample(t *testing.T) {
	got := Names(model.Charms(10369))
	sort.Strings(got)
	want := []string{"coin", "mythic", "palindrome", "reinscription"}
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names(10369) = %v, want %v", got, want)
	}
}

func TestNamesUnknownBit(t *testing.T) {
	got := Names(model.Charms(1 << 15))
	if len(got) != 1 || got[0] != "unknown" {
		t.Errorf("Names(1<<15) = %v, want [unknown]", got)
	}
}

func TestNamesEmpty(t *testing.T) {
	got := Names(model.Charms(0))
	if len(got) != 0 {
		t.Errorf("Names(0) = %v, want empty", got)
	}
}
