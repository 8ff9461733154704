package vers

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
)

func v(t *testing.T, s string) *semver.Version {
	t.Helper()
	ver, err := semver.StrictNewVersion(s)
	if err != nil {
		t.Fatalf("bad test version %q: %v", s, err)
	}
	return ver
}

func TestParseReqErrors(t *testing.T) {
	tests := []string{
		"",
		"1.2.3.4",
		"*.2",
		">=1.*",
		"1.bad",
		"1,,2",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseReq(input); !errors.Is(err, ErrInvalidRequirement) {
				t.Errorf("ParseReq(%q) error = %v, want ErrInvalidRequirement", input, err)
			}
		})
	}
}

func TestPinned(t *testing.T) {
	tests := []struct {
		req  string
		want bool
	}{
		{"=3", true},
		{"=1.2.3", true},
		{"<3", true},
		{"<=3", true},
		{"3.*", true},
		{"1.2.*", true},
		{"*", false},
		{">3", false},
		{">=3", false},
		{"^3", false},
		{"~3.1", false},
		{"3", false},
		{"1.2", false},
	}
	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			r, err := ParseReq(tt.req)
			if err != nil {
				t.Fatalf("ParseReq(%q) error = %v", tt.req, err)
			}
			if got := r.Pinned(); got != tt.want {
				t.Errorf("Pinned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		req     string
		version string
		want    bool
	}{
		{"1", "1.0.0", true},
		{"1", "1.9.3", true},
		{"1", "2.0.0", false},
		{"1.2", "1.2.0", true},
		{"1.2", "1.5.3", true},
		{"1.2", "1.1.9", false},
		{"^0.3", "0.3.9", true},
		{"^0.3", "0.4.0", false},
		{"^0.0.3", "0.0.3", true},
		{"^0.0.3", "0.0.4", false},
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{"~1", "1.9.0", true},
		{"~1", "2.0.0", false},
		{"=1.2.3", "1.2.3", true},
		{"=1.2.3", "1.2.4", false},
		{"=1.2", "1.2.9", true},
		{"=1.2", "1.3.0", false},
		{"1.*", "1.9.0", true},
		{"1.*", "2.0.0", false},
		{"1.2.*", "1.2.9", true},
		{"1.2.*", "1.3.0", false},
		{"*", "3.1.4", true},
		{">=1.2, <1.5", "1.4.9", true},
		{">=1.2, <1.5", "1.5.0", false},
		{">1.2.3", "1.2.4", true},
		{">1.2.3", "1.2.3", false},
		// Prereleases only match comparators naming the same triple.
		{"1", "2.0.0-alpha.1", false},
		{"1.0.0-alpha", "1.0.0-beta", true},
		{"1.0.0-beta", "1.0.1-alpha", false},
		{"*", "1.0.0-alpha", false},
	}
	for _, tt := range tests {
		t.Run(tt.req+" vs "+tt.version, func(t *testing.T) {
			r, err := ParseReq(tt.req)
			if err != nil {
				t.Fatalf("ParseReq(%q) error = %v", tt.req, err)
			}
			if got := r.Matches(v(t, tt.version)); got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestUpgrade(t *testing.T) {
	tests := []struct {
		req     string
		version string
		want    string
		changed bool
	}{
		{"1.2", "1.5.3", "1.5", true},
		{"2", "2.4.1", "2", false},
		{"1", "2.0.0", "2", true},
		{"1.2.3", "1.5.3", "1.5.3", true},
		{"^1.2", "1.5.3", "^1.5", true},
		{"~0.9.3", "0.10.1", "~0.10.1", true},
		{"=1.2.3", "2.0.0", "=2.0.0", true},
		{">=1.2", "2.1.0", ">=2.1", true},
		{">=1.2, <2", "2.1.0", ">=2.1, <2.1", true},
		{"1.*", "2.1.0", "2.*", true},
		{"1.2.*", "1.5.0", "1.5.*", true},
		{"*", "3.0.0", "*", false},
		{"1.2.3", "1.2.3", "1.2.3", false},
		{"1.0.0-alpha.1", "1.0.0-beta.2", "1.0.0-beta.2", true},
		{"1.5", "2.0.0-alpha.1", "2.0.0-alpha.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.req+" to "+tt.version, func(t *testing.T) {
			r, err := ParseReq(tt.req)
			if err != nil {
				t.Fatalf("ParseReq(%q) error = %v", tt.req, err)
			}
			got, changed := r.Upgrade(v(t, tt.version))
			if got != tt.want || changed != tt.changed {
				t.Errorf("Upgrade(%s) = (%q, %v), want (%q, %v)",
					tt.version, got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestLowerBound(t *testing.T) {
	tests := []struct {
		req  string
		want string
	}{
		{"1.2", "1.2.0"},
		{"^2", "2.0.0"},
		{">=1.2.3, <2", "1.2.3"},
		{"*", "0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			r, err := ParseReq(tt.req)
			if err != nil {
				t.Fatalf("ParseReq(%q) error = %v", tt.req, err)
			}
			if got := r.LowerBound().String(); got != tt.want {
				t.Errorf("LowerBound() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExact(t *testing.T) {
	if got := Exact(v(t, "1.2.3")); got != "1.2.3" {
		t.Errorf("Exact(1.2.3) = %q", got)
	}
	if got := Exact(v(t, "1.2.3-beta.1")); got != "1.2.3-beta.1" {
		t.Errorf("Exact(1.2.3-beta.1) = %q", got)
	}
}
