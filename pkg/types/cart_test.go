package types

import "testing"

func TestEnvelopesSorted(t *testing.T) {
	cart := EnvelopeCart{44: 1, 3: 2, 17: 1}
	got := cart.Envelopes()
	want := []int{3, 17, 44}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cart := EnvelopeCart{5: 1}
	clone := cart.Clone()
	clone[5] = 9
	if cart[5] != 1 {
		t.Fatal("clone mutated the original")
	}
	if EnvelopeCart(nil).Clone() != nil {
		t.Fatal("nil cart should clone to nil")
	}
}

func TestTotalQuantityAndIsEmpty(t *testing.T) {
	if got := (EnvelopeCart{1: 2, 2: 3}).TotalQuantity(); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if !(EnvelopeCart{}).IsEmpty() {
		t.Fatal("empty cart should report empty")
	}
	if (EnvelopeCart{1: 1}).IsEmpty() {
		t.Fatal("non-empty cart reported empty")
	}
}

func TestValidEnvelopeNumber(t *testing.T) {
	cases := map[int]bool{0: false, 1: true, 52: true, 53: false, -3: false}
	for envelope, want := range cases {
		if got := ValidEnvelopeNumber(envelope); got != want {
			t.Fatalf("envelope %d: expected %v, got %v", envelope, want, got)
		}
	}
}
