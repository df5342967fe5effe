package course

import "testing"

func TestLevel_IsValid(t *testing.T) {
	for _, l := range []Level{LevelBeginner, LevelIntermediate, LevelAdvanced} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []Level{"", "beginner", "EXPERT"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", "", false},
		{"   ", "", false},
		{"BEGINNER", LevelBeginner, false},
		{"intermediate", LevelIntermediate, false},
		{" Advanced ", LevelAdvanced, false},
		{"expert", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
