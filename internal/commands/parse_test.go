package commands

import (
	"reflect"
	"testing"
)

func TestParseArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tokens    []string
		wantArgs  []string
		wantFlags map[string]string
		wantBools map[string]bool
	}{
		{
			name:      "positional only",
			tokens:    []string{"3", "extra"},
			wantArgs:  []string{"3", "extra"},
			wantFlags: map[string]string{},
			wantBools: map[string]bool{},
		},
		{
			name:      "equals form",
			tokens:    []string{"--cooldown=5m", "--scope=here"},
			wantFlags: map[string]string{"cooldown": "5m", "scope": "here"},
			wantBools: map[string]bool{},
		},
		{
			name:      "space form",
			tokens:    []string{"2", "--cooldown", "10m"},
			wantArgs:  []string{"2"},
			wantFlags: map[string]string{"cooldown": "10m"},
			wantBools: map[string]bool{},
		},
		{
			name:      "bare flag is boolean",
			tokens:    []string{"--quiet", "--scope", "all"},
			wantFlags: map[string]string{"scope": "all"},
			wantBools: map[string]bool{"quiet": true},
		},
		{
			name:      "flag followed by flag stays boolean",
			tokens:    []string{"--quiet", "--verbose"},
			wantFlags: map[string]string{},
			wantBools: map[string]bool{"quiet": true, "verbose": true},
		},
		{
			name:      "keys are lowercased",
			tokens:    []string{"--Cooldown=5m"},
			wantFlags: map[string]string{"cooldown": "5m"},
			wantBools: map[string]bool{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args, flags, bools := parseArgs(tt.tokens)
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			if !reflect.DeepEqual(flags, tt.wantFlags) {
				t.Fatalf("flags = %v, want %v", flags, tt.wantFlags)
			}
			if !reflect.DeepEqual(bools, tt.wantBools) {
				t.Fatalf("bools = %v, want %v", bools, tt.wantBools)
			}
		})
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		wantName string
		wantRest []string
		wantOK   bool
	}{
		{text: "/notify 3 --scope here", wantName: "notify", wantRest: []string{"3", "--scope", "here"}, wantOK: true},
		{text: "/notify@pulsebot 3", wantName: "notify", wantRest: []string{"3"}, wantOK: true},
		{text: "/RULES", wantName: "rules", wantOK: true},
		{text: "hello", wantOK: false},
		{text: "/", wantOK: false},
		{text: "   ", wantOK: false},
	}

	for _, tt := range tests {
		name, rest, ok := splitCommand(tt.text)
		if ok != tt.wantOK {
			t.Fatalf("splitCommand(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
		}
		if !ok {
			continue
		}
		if name != tt.wantName {
			t.Fatalf("splitCommand(%q) name = %q, want %q", tt.text, name, tt.wantName)
		}
		if !reflect.DeepEqual(rest, tt.wantRest) && !(len(rest) == 0 && len(tt.wantRest) == 0) {
			t.Fatalf("splitCommand(%q) rest = %v, want %v", tt.text, rest, tt.wantRest)
		}
	}
}
