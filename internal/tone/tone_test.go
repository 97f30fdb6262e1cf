package tone

import (
	"strings"
	"testing"
)

func TestValidateTagsStripsUnknown(t *testing.T) {
	got := ValidateTags([]string{"concise", "UNKNOWN", "formal", "  warm_supportive  ", "injected_tag"})
	for _, tag := range got {
		if !AllTags[tag] {
			t.Errorf("unexpected tag in cleaned set: %q", tag)
		}
	}
	if len(got) != 3 { // concise, formal, warm_supportive
		t.Errorf("expected 3 tags, got %d: %v", len(got), got)
	}
}

func TestValidateTagsResolvesMutualExclusion(t *testing.T) {
	got := ValidateTags([]string{"casual", "formal", "concise", "detailed"})
	set := make(map[string]bool)
	for _, tag := range got {
		set[tag] = true
	}
	if set["formal"] && set["casual"] {
		t.Error("formal and casual both survived")
	}
	if set["concise"] && set["detailed"] {
		t.Error("concise and detailed both survived")
	}
}

func TestValidateTagsDeduplicates(t *testing.T) {
	got := ValidateTags([]string{"concise", "concise", "Concise"})
	if len(got) != 1 {
		t.Errorf("expected 1 tag, got %v", got)
	}
}

func TestBuildToneGuideEmpty(t *testing.T) {
	if guide := BuildToneGuide(nil); guide != "" {
		t.Errorf("expected empty guide, got %q", guide)
	}
	if guide := BuildToneGuide([]string{"bogus"}); guide != "" {
		t.Errorf("unknown tags should produce no guide, got %q", guide)
	}
}

func TestBuildToneGuideContents(t *testing.T) {
	guide := BuildToneGuide([]string{"warm_supportive", "one_question_at_a_time"})
	if !strings.Contains(guide, "warm and supportive") {
		t.Errorf("stance rule missing: %q", guide)
	}
	if !strings.Contains(guide, "one question at a time") {
		t.Errorf("interaction rule missing: %q", guide)
	}
	if !strings.Contains(guide, "<TONE POLICY>") {
		t.Errorf("guide missing envelope: %q", guide)
	}
}
