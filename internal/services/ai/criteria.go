package ai

import (
	"sort"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Criterion is one WCAG 2.1 success criterion the analyzer can evaluate.
type Criterion struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Level models.WCAGLevel `json:"level"`
}

// wcagCriteria is the WCAG 2.1 success criteria registry.
var wcagCriteria = []Criterion{
	{ID: "1.1.1", Name: "Non-text Content", Level: models.WCAGLevelA},
	{ID: "1.2.1", Name: "Audio-only and Video-only (Prerecorded)", Level: models.WCAGLevelA},
	{ID: "1.2.2", Name: "Captions (Prerecorded)", Level: models.WCAGLevelA},
	{ID: "1.2.3", Name: "Audio Description or Media Alternative (Prerecorded)", Level: models.WCAGLevelA},
	{ID: "1.2.4", Name: "Captions (Live)", Level: models.WCAGLevelAA},
	{ID: "1.2.5", Name: "Audio Description (Prerecorded)", Level: models.WCAGLevelAA},
	{ID: "1.2.6", Name: "Sign Language (Prerecorded)", Level: models.WCAGLevelAAA},
	{ID: "1.2.7", Name: "Extended Audio Description (Prerecorded)", Level: models.WCAGLevelAAA},
	{ID: "1.2.8", Name: "Media Alternative (Prerecorded)", Level: models.WCAGLevelAAA},
	{ID: "1.2.9", Name: "Audio-only (Live)", Level: models.WCAGLevelAAA},
	{ID: "1.3.1", Name: "Info and Relationships", Level: models.WCAGLevelA},
	{ID: "1.3.2", Name: "Meaningful Sequence", Level: models.WCAGLevelA},
	{ID: "1.3.3", Name: "Sensory Characteristics", Level: models.WCAGLevelA},
	{ID: "1.3.4", Name: "Orientation", Level: models.WCAGLevelAA},
	{ID: "1.3.5", Name: "Identify Input Purpose", Level: models.WCAGLevelAA},
	{ID: "1.3.6", Name: "Identify Purpose", Level: models.WCAGLevelAAA},
	{ID: "1.4.1", Name: "Use of Color", Level: models.WCAGLevelA},
	{ID: "1.4.2", Name: "Audio Control", Level: models.WCAGLevelA},
	{ID: "1.4.3", Name: "Contrast (Minimum)", Level: models.WCAGLevelAA},
	{ID: "1.4.4", Name: "Resize Text", Level: models.WCAGLevelAA},
	{ID: "1.4.5", Name: "Images of Text", Level: models.WCAGLevelAA},
	{ID: "1.4.6", Name: "Contrast (Enhanced)", Level: models.WCAGLevelAAA},
	{ID: "1.4.7", Name: "Low or No Background Audio", Level: models.WCAGLevelAAA},
	{ID: "1.4.8", Name: "Visual Presentation", Level: models.WCAGLevelAAA},
	{ID: "1.4.9", Name: "Images of Text (No Exception)", Level: models.WCAGLevelAAA},
	{ID: "1.4.10", Name: "Reflow", Level: models.WCAGLevelAA},
	{ID: "1.4.11", Name: "Non-text Contrast", Level: models.WCAGLevelAA},
	{ID: "1.4.12", Name: "Text Spacing", Level: models.WCAGLevelAA},
	{ID: "1.4.13", Name: "Content on Hover or Focus", Level: models.WCAGLevelAA},
	{ID: "2.1.1", Name: "Keyboard", Level: models.WCAGLevelA},
	{ID: "2.1.2", Name: "No Keyboard Trap", Level: models.WCAGLevelA},
	{ID: "2.1.3", Name: "Keyboard (No Exception)", Level: models.WCAGLevelAAA},
	{ID: "2.1.4", Name: "Character Key Shortcuts", Level: models.WCAGLevelA},
	{ID: "2.2.1", Name: "Timing Adjustable", Level: models.WCAGLevelA},
	{ID: "2.2.2", Name: "Pause, Stop, Hide", Level: models.WCAGLevelA},
	{ID: "2.2.3", Name: "No Timing", Level: models.WCAGLevelAAA},
	{ID: "2.2.4", Name: "Interruptions", Level: models.WCAGLevelAAA},
	{ID: "2.2.5", Name: "Re-authenticating", Level: models.WCAGLevelAAA},
	{ID: "2.2.6", Name: "Timeouts", Level: models.WCAGLevelAAA},
	{ID: "2.3.1", Name: "Three Flashes or Below Threshold", Level: models.WCAGLevelA},
	{ID: "2.3.2", Name: "Three Flashes", Level: models.WCAGLevelAAA},
	{ID: "2.3.3", Name: "Animation from Interactions", Level: models.WCAGLevelAAA},
	{ID: "2.4.1", Name: "Bypass Blocks", Level: models.WCAGLevelA},
	{ID: "2.4.2", Name: "Page Titled", Level: models.WCAGLevelA},
	{ID: "2.4.3", Name: "Focus Order", Level: models.WCAGLevelA},
	{ID: "2.4.4", Name: "Link Purpose (In Context)", Level: models.WCAGLevelA},
	{ID: "2.4.5", Name: "Multiple Ways", Level: models.WCAGLevelAA},
	{ID: "2.4.6", Name: "Headings and Labels", Level: models.WCAGLevelAA},
	{ID: "2.4.7", Name: "Focus Visible", Level: models.WCAGLevelAA},
	{ID: "2.4.8", Name: "Location", Level: models.WCAGLevelAAA},
	{ID: "2.4.9", Name: "Link Purpose (Link Only)", Level: models.WCAGLevelAAA},
	{ID: "2.4.10", Name: "Section Headings", Level: models.WCAGLevelAAA},
	{ID: "2.5.1", Name: "Pointer Gestures", Level: models.WCAGLevelA},
	{ID: "2.5.2", Name: "Pointer Cancellation", Level: models.WCAGLevelA},
	{ID: "2.5.3", Name: "Label in Name", Level: models.WCAGLevelA},
	{ID: "2.5.4", Name: "Motion Actuation", Level: models.WCAGLevelA},
	{ID: "2.5.5", Name: "Target Size", Level: models.WCAGLevelAAA},
	{ID: "2.5.6", Name: "Concurrent Input Mechanisms", Level: models.WCAGLevelAAA},
	{ID: "3.1.1", Name: "Language of Page", Level: models.WCAGLevelA},
	{ID: "3.1.2", Name: "Language of Parts", Level: models.WCAGLevelAA},
	{ID: "3.1.3", Name: "Unusual Words", Level: models.WCAGLevelAAA},
	{ID: "3.1.4", Name: "Abbreviations", Level: models.WCAGLevelAAA},
	{ID: "3.1.5", Name: "Reading Level", Level: models.WCAGLevelAAA},
	{ID: "3.1.6", Name: "Pronunciation", Level: models.WCAGLevelAAA},
	{ID: "3.2.1", Name: "On Focus", Level: models.WCAGLevelA},
	{ID: "3.2.2", Name: "On Input", Level: models.WCAGLevelA},
	{ID: "3.2.3", Name: "Consistent Navigation", Level: models.WCAGLevelAA},
	{ID: "3.2.4", Name: "Consistent Identification", Level: models.WCAGLevelAA},
	{ID: "3.2.5", Name: "Change on Request", Level: models.WCAGLevelAAA},
	{ID: "3.3.1", Name: "Error Identification", Level: models.WCAGLevelA},
	{ID: "3.3.2", Name: "Labels or Instructions", Level: models.WCAGLevelA},
	{ID: "3.3.3", Name: "Error Suggestion", Level: models.WCAGLevelAA},
	{ID: "3.3.4", Name: "Error Prevention (Legal, Financial, Data)", Level: models.WCAGLevelAA},
	{ID: "3.3.5", Name: "Help", Level: models.WCAGLevelAAA},
	{ID: "3.3.6", Name: "Error Prevention (All)", Level: models.WCAGLevelAAA},
	{ID: "4.1.1", Name: "Parsing", Level: models.WCAGLevelA},
	{ID: "4.1.2", Name: "Name, Role, Value", Level: models.WCAGLevelA},
	{ID: "4.1.3", Name: "Status Messages", Level: models.WCAGLevelAA},
}

// CriteriaForLevel returns the criteria in scope for the conformance
// target, sorted lexicographically by ID so partitioning is deterministic.
func CriteriaForLevel(level models.WCAGLevel) []Criterion {
	out := make([]Criterion, 0, len(wcagCriteria))
	for _, c := range wcagCriteria {
		if level.Includes(c.Level) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
