// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"os"
	"strings"
	"time"
)

// DefaultAnchorDate pins relative-date scoring so runs on different
// days produce comparable scores. Override with EVAL_ANCHOR_DATE.
const DefaultAnchorDate = "2025-08-06"

// AnchorDate returns the active anchor date in YYYY-MM-DD form.
//
// A malformed EVAL_ANCHOR_DATE falls back to the default rather than
// failing the run.
func AnchorDate() string {
	if v := os.Getenv("EVAL_ANCHOR_DATE"); v != "" {
		if _, err := time.Parse("2006-01-02", v); err == nil {
			return v
		}
	}
	return DefaultAnchorDate
}

// AnchorTomorrow returns the day after the anchor date.
func AnchorTomorrow() string {
	t, err := time.Parse("2006-01-02", AnchorDate())
	if err != nil {
		t, _ = time.Parse("2006-01-02", DefaultAnchorDate)
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}

// SubstituteAnchors replaces ${TODAY} and ${TOMORROW} placeholder
// tokens with the anchor date and its successor. Applied to raw
// fixture text before decoding so every string field participates.
func SubstituteAnchors(text string) string {
	text = strings.ReplaceAll(text, "${TODAY}", AnchorDate())
	return strings.ReplaceAll(text, "${TOMORROW}", AnchorTomorrow())
}
