package telegram

import (
	"strings"
	"testing"
)

// markdownOutsideCode returns the text of s that legacy Markdown does not treat as code.
func markdownOutsideCode(s string) string {
	var b strings.Builder
	inCode := false
	for _, r := range s {
		if r == '`' {
			inCode = !inCode
			continue
		}
		if !inCode {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestAdminHelpText_ParsesAsLegacyMarkdown(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		text := adminHelpText(dryRun)
		if strings.Count(text, "`")%2 != 0 {
			t.Fatalf("dryRun=%t: unbalanced code spans", dryRun)
		}
		outside := markdownOutsideCode(text)
		if strings.ContainsAny(outside, "_*[") {
			t.Fatalf("dryRun=%t: entity markers outside code spans:\n%s", dryRun, outside)
		}
		if !strings.Contains(text, "`days_before_due`") {
			t.Fatalf("dryRun=%t: trigger names missing from help", dryRun)
		}
	}
	if !strings.Contains(adminHelpText(true), "Dry run is ON") {
		t.Fatal("dry run notice missing")
	}
}
