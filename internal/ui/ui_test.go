package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

func TestRenderStatus(t *testing.T) {
	noColor = false
	t.Cleanup(func() { noColor = false })

	got := RenderStatus(model.StatusVerified)
	if !strings.HasPrefix(got, "\x1b[38;5;114m") || !strings.Contains(got, "VERIFIED") {
		t.Fatalf("RenderStatus = %q", got)
	}
	if got := RenderPriority(model.PriorityMedium); got != "MEDIUM" {
		t.Fatalf("RenderPriority(MEDIUM) = %q, want plain", got)
	}

	ForceNoColor()
	if got := RenderStatus(model.StatusVerified); got != "VERIFIED" {
		t.Fatalf("RenderStatus without color = %q", got)
	}
}

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColor", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Forced", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "", "CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(os.Stdout); got != tc.want {
				t.Fatalf("ShouldUseColor = %v, want %v", got, tc.want)
			}
		})
	}
}
