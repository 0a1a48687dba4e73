package sanitizer

import (
	"reflect"
	"testing"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"already clean", "Team sync", "Team sync"},
		{"leading and trailing", "  Team sync  ", "Team sync"},
		{"internal runs collapsed", "Team \t\n  sync", "Team sync"},
		{"unicode preserved", "Встреча  команды", "Встреча команды"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabels(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, nil},
		{"lowercased", []string{"Projector", "WHITEBOARD"}, []string{"projector", "whiteboard"}},
		{"duplicates dropped", []string{"projector", " Projector "}, []string{"projector"}},
		{"empties dropped", []string{"", "  ", "tv"}, []string{"tv"}},
		{"order kept", []string{"tv", "projector", "tv"}, []string{"tv", "projector"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLabels(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeLabels(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
