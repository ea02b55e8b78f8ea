package version

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.5.0", "1.0.0", 1},
		{"0.9.8", "1.0.0", -1},
		{"2.0.0a1", "2.0.0", -1},
		{"2.0.0.post1", "2.0.0", 1},
		{"1.0.0.dev1", "1.0.0", -1},
		{"1!1.0.0", "2.0.0", 1},
	}
	for _, tt := range tests {
		av, err := Parse(tt.a)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.a, err)
		}
		bv, err := Parse(tt.b)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.b, err)
		}
		if got := av.Compare(bv); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "not-a-version", "abc"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): want error, got nil", s)
		}
	}
}

func TestSatisfiesS3(t *testing.T) {
	bounds := Bounds{StartIncluding: "1.0.0", EndExcluding: "2.0.0"}
	cases := []struct {
		v    string
		want bool
	}{
		{"1.5.0", true},
		{"2.0.0", false},
		{"0.9.8", false},
		{"unknown", true},
		{"any", true},
	}
	for _, c := range cases {
		if got := Satisfies(c.v, bounds); got != c.want {
			t.Errorf("Satisfies(%q, %+v) = %v, want %v", c.v, bounds, got, c.want)
		}
	}
}

func TestSatisfiesUnparseableConcreteIsConservative(t *testing.T) {
	if !Satisfies("totally not a version!!", Bounds{StartIncluding: "1.0.0"}) {
		t.Error("unparseable concrete version should conservatively satisfy")
	}
}

func TestSatisfiesUnparseableBoundIsConservative(t *testing.T) {
	if !Satisfies("1.0.0", Bounds{StartIncluding: "not-a-version"}) {
		t.Error("unparseable bound should conservatively satisfy")
	}
}

func TestSatisfiesNoBounds(t *testing.T) {
	if !Satisfies("1.0.0", Bounds{}) {
		t.Error("absent bounds should satisfy (not consulted by caller in practice)")
	}
}
