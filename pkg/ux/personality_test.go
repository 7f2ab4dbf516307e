// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"testing"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		input string
		want  PersonalityLevel
	}{
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"s", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{"min", PersonalityMinimal},
		{"m", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"q", PersonalityMachine},
		{"MACHINE", PersonalityMachine},
		{"", PersonalityStandard},
		{"bogus", PersonalityStandard},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParsePersonalityLevel(tt.input); got != tt.want {
				t.Errorf("ParsePersonalityLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetPersonalityLevel_RoundTrip(t *testing.T) {
	prev := GetPersonality()
	t.Cleanup(func() { SetPersonality(prev) })

	SetPersonalityLevel(PersonalityMinimal)
	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("level = %q, want minimal", got)
	}

	SetPersonality(Personality{Level: PersonalityMachine})
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("level = %q, want machine", got)
	}
}

func TestInitPersonality_EnvOverride(t *testing.T) {
	prev := GetPersonality()
	t.Cleanup(func() { SetPersonality(prev) })

	t.Setenv("ALEUTIANBENCH_PERSONALITY", "minimal")
	InitPersonality()
	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("level = %q, want env override", got)
	}
}

func TestShouldShowProgress(t *testing.T) {
	prev := GetPersonality()
	t.Cleanup(func() { SetPersonality(prev) })

	SetPersonalityLevel(PersonalityStandard)
	if !ShouldShowProgress() {
		t.Error("standard mode should show progress")
	}
	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowProgress() {
		t.Error("machine mode should suppress progress")
	}
}
