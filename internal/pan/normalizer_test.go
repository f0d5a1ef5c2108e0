package pan

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   RawRecord
		want string
	}{
		{"null", Null(), ""},
		{"empty", Raw(""), ""},
		{"whitespace only", Raw(" \t\n "), ""},
		{"padded mixed case", Raw("  abXcd1934f "), "ABXCD1934F"},
		{"already normalized", Raw("ABXCD1934F"), "ABXCD1934F"},
		{"inner spaces kept", Raw("AB CD"), "AB CD"},
		{"digits and symbols pass through", Raw("12-34_x"), "12-34_X"},
		{"dotless i upper-cases to I", Raw("abxdı1934f"), "ABXDI1934F"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%+v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_UnicodeLettersReachCascade(t *testing.T) {
	id := Normalize(Raw("ABXDı1934F"))
	if got := Classify(id); got != VerdictValid {
		t.Errorf("Classify(%q) = %s, want %s", id, got, VerdictValid)
	}
	if got := Classify(Normalize(Raw("ABXDé1934F"))); got != VerdictInvalidFormat {
		t.Errorf("accented letter: got %s, want %s", got, VerdictInvalidFormat)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"abxcd1934f", "  ABC ", "x", "", "mIxEd 123", "ąbć"}
	for _, in := range inputs {
		once := Normalize(Raw(in))
		twice := Normalize(Raw(once))
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	got := NormalizeAll([]RawRecord{Raw("b"), Null(), Raw(" a ")})
	want := []string{"B", "", "A"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeAll()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeRawRecords(t *testing.T) {
	got, err := DecodeRawRecords([]byte(`["abxcd1934f", null, " X "]`))
	if err != nil {
		t.Fatalf("DecodeRawRecords() error: %v", err)
	}
	want := []RawRecord{Raw("abxcd1934f"), Null(), Raw(" X ")}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDecodeRawRecords_RejectsNonStrings(t *testing.T) {
	inputs := []string{
		`["ok", 5]`,
		`[true]`,
		`[{"pan":"x"}]`,
		`[["x"]]`,
		`{"values":[]}`,
		`not json`,
	}
	for _, in := range inputs {
		if _, err := DecodeRawRecords([]byte(in)); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("DecodeRawRecords(%s) error = %v, want ErrInvalidRecord", in, err)
		}
	}
}
