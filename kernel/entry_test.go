// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"os"
	"strings"
	"testing"
)

// The entry routines only run on hardware, so their register save
// order is checked on the source.
func TestTrapCommonSavesVectorState(t *testing.T) {
	src, err := os.ReadFile("entry_amd64.s")
	if err != nil {
		t.Fatal(err)
	}
	_, body, ok := strings.Cut(string(src), "TEXT trapCommon<>(SB)")
	if !ok {
		t.Fatal("trapCommon not found")
	}
	body, _, _ = strings.Cut(body, "IRETQ")
	var order []string
	for _, line := range strings.Split(body, "\n") {
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "ANDQ", "FXSAVE64", "CALL", "FXRSTOR64":
			order = append(order, strings.Join(f, " "))
		}
	}
	want := []string{"ANDQ $~15, SP", "FXSAVE64 0(SP)", "CALL ·dispatchTrap(SB)", "FXRSTOR64 16(SP)"}
	if strings.Join(order, "\n") != strings.Join(want, "\n") {
		t.Errorf("trapCommon sequence = %q, want %q", order, want)
	}
}
