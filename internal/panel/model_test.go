package panel

import (
	"errors"
	"testing"
)

func TestNewModelValidation(t *testing.T) {
	tests := []struct {
		name       string
		zones      int
		partitions int
		wantErr    bool
	}{
		{name: "default limits", zones: 192, partitions: 8},
		{name: "small system", zones: 8, partitions: 1},
		{name: "zero zones", zones: 0, partitions: 8, wantErr: true},
		{name: "negative partitions", zones: 48, partitions: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.zones, tt.partitions)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewModel(%d, %d) err = %v, wantErr %v", tt.zones, tt.partitions, err, tt.wantErr)
			}
		})
	}
}

func TestNewModelRejectsDigitCategoryCodes(t *testing.T) {
	// The decoder's greedy id scan relies on category codes (and topic
	// payloads) being letters; a digit in a code would misparse.
	_, err := newModel(
		map[Category][]string{Category("Z1"): {"fault"}},
		map[Category]int{Category("Z1"): 4},
	)
	if err == nil {
		t.Fatal("expected error for category code containing a digit")
	}
}

func TestModelLookups(t *testing.T) {
	m := testModel(t, 48, 2)

	if got := m.MaxID(CategoryZone); got != 48 {
		t.Errorf("MaxID(zone) = %d, want 48", got)
	}
	if got := len(m.Topics(CategoryPartition)); got != 8 {
		t.Errorf("len(Topics(partition)) = %d, want 8", got)
	}
	if m.Topics(Category("XX")) != nil {
		t.Error("Topics(XX) should be nil")
	}
	if !m.Valid(CategoryPartition, 2) || m.Valid(CategoryPartition, 3) {
		t.Error("Valid range check wrong for partitions")
	}
	if got := m.deviceCount(); got != 50 {
		t.Errorf("deviceCount = %d, want 50", got)
	}

	// Stable category order: PA sorts before ZN.
	cats := m.Categories()
	if len(cats) != 2 || cats[0] != CategoryPartition || cats[1] != CategoryZone {
		t.Errorf("Categories() = %v, want [PA ZN]", cats)
	}
}

func TestKeymapFor(t *testing.T) {
	for _, variant := range []string{KeymapUSA, KeymapAUNZ} {
		km, err := KeymapFor(variant)
		if err != nil {
			t.Fatalf("KeymapFor(%s): %v", variant, err)
		}
		if len(km) != 8 {
			t.Errorf("keymap %s has %d entries, want 8", variant, len(km))
		}
	}

	if _, err := KeymapFor("EU"); !errors.Is(err, ErrUnsupportedKeymap) {
		t.Errorf("KeymapFor(EU) err = %v, want ErrUnsupportedKeymap", err)
	}
}

func TestTriState(t *testing.T) {
	if StateUnknown.String() != "unknown" || StateTrue.String() != "true" || StateFalse.String() != "false" {
		t.Error("TriState String mismatch")
	}

	if _, known := StateUnknown.Bool(); known {
		t.Error("StateUnknown should not be known")
	}
	if v, known := StateTrue.Bool(); !known || !v {
		t.Error("StateTrue should be known true")
	}
	if v, known := StateFalse.Bool(); !known || v {
		t.Error("StateFalse should be known false")
	}
}

func TestCategorySlug(t *testing.T) {
	if CategoryZone.Slug() != "zone" || CategoryPartition.Slug() != "partition" {
		t.Error("category slug mismatch")
	}
	if Category("XY").Slug() != "XY" {
		t.Error("unknown category slug should pass through")
	}
}
