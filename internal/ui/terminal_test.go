package ui

import (
	"os"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       *string
		cliColor      string
		cliColorForce string
		wantColor     bool
	}{
		{name: "NO_COLOR disables color", noColor: strPtr("1"), wantColor: false},
		{name: "NO_COLOR empty string value still disables", noColor: strPtr(""), wantColor: false},
		{name: "CLICOLOR=0 disables color", cliColor: "0", wantColor: false},
		{name: "CLICOLOR_FORCE enables color even in non-TTY", cliColorForce: "1", wantColor: true},
		{name: "NO_COLOR takes precedence over CLICOLOR_FORCE", noColor: strPtr("1"), cliColorForce: "1", wantColor: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "")
			os.Unsetenv("NO_COLOR")
			if tt.noColor != nil {
				os.Setenv("NO_COLOR", *tt.noColor)
			}
			t.Setenv("CLICOLOR", tt.cliColor)
			t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)

			if got := ShouldUseColor(); got != tt.wantColor {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	// Under go test stdout and stdin are usually not TTYs; this only checks
	// that the checks do not panic.
	t.Logf("IsTerminal() = %v, IsInputTerminal() = %v", IsTerminal(), IsInputTerminal())
}

func strPtr(s string) *string { return &s }
