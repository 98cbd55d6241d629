package platform

import "testing"

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"amd64", "amd64"},
		{"x86_64", "amd64"},
		{"arm64", "arm64"},
		{"aarch64", "arm64"},
		{"i686", "386"},
		{"armv7l", "arm"},
		{" RISCV64 ", "riscv64"},
	}

	for _, tt := range tests {
		if got := normalizeArch(tt.in); got != tt.want {
			t.Errorf("normalizeArch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapFamily(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debian", FamilyDebian},
		{"Ubuntu", FamilyDebian},
		{"rhel", FamilyRHEL},
		{"rocky", FamilyRHEL},
		{"fedora", FamilyFedora},
		{"opensuse", FamilySUSE},
		{"manjaro", FamilyArch},
		{"alpine", FamilyAlpine},
		{"slackware", FamilyUnknown},
		{"", FamilyUnknown},
	}

	for _, tt := range tests {
		if got := mapFamily(tt.in); got != tt.want {
			t.Errorf("mapFamily(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
