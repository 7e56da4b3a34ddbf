// SPDX-License-Identifier: MPL-2.0

package capsule_test

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"capsule-cli/pkg/capsule"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestValidateValidCapsule(t *testing.T) {
	t.Parallel()

	c := mustDecode(t, validSpec().build())
	report := capsule.Validate(c, capsule.Options{Logger: quietLogger()})

	if !report.OK {
		t.Fatalf("Validate() OK = false, failures: %+v", report.Failures())
	}
	if report.Forced {
		t.Error("Forced = true on a fully valid capsule")
	}
	if want := len(capsule.Rules()); report.Evaluated() != want {
		t.Errorf("Evaluated() = %d, want %d", report.Evaluated(), want)
	}
}

func TestValidateRuleOrder(t *testing.T) {
	t.Parallel()

	want := []string{
		"capsule-guid",
		"header-size",
		"flags",
		"image-size",
		"fmc-version",
		"no-embedded-drivers",
		"single-payload",
		"image-header-version",
		"reserved-zero",
		"update-image-size",
		"vendor-code-zero",
		"support-bits-known",
		"no-dependency",
		"authentication-required",
		"auth-length",
		"auth-revision",
		"auth-cert-type",
		"auth-guid",
		"no-trailing-bytes",
	}

	rules := capsule.Rules()
	if len(rules) != len(want) {
		t.Fatalf("len(Rules()) = %d, want %d", len(rules), len(want))
	}
	for i, r := range rules {
		if r.Name != want[i] {
			t.Errorf("rule %d = %q, want %q", i, r.Name, want[i])
		}
	}
}

func TestValidateFailFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		mutate        func(*capsuleSpec)
		wantFirstFail string
		wantEvaluated int
	}{
		{
			name:          "wrong capsule guid",
			mutate:        func(s *capsuleSpec) { s.capsuleGuid = s.typeID },
			wantFirstFail: "capsule-guid",
			wantEvaluated: 1,
		},
		{
			// HeaderSize = 20 fails header-size with exactly the two first
			// rules evaluated.
			name: "header size too small",
			mutate: func(s *capsuleSpec) {
				s.headerSize = 20
				s.padding = nil
			},
			wantFirstFail: "header-size",
			wantEvaluated: 2,
		},
		{
			name:          "unknown flag bits",
			mutate:        func(s *capsuleSpec) { s.flags = 0x00000001 },
			wantFirstFail: "flags",
			wantEvaluated: 3,
		},
		{
			name:          "wrong fmc version",
			mutate:        func(s *capsuleSpec) { s.fmcVersion = 2 },
			wantFirstFail: "fmc-version",
			wantEvaluated: 5,
		},
		{
			name: "two payload items",
			mutate: func(s *capsuleSpec) {
				s.payloadDecl = 2
				s.itemOffsets = []uint64{16, 99}
			},
			wantFirstFail: "single-payload",
			wantEvaluated: 7,
		},
		{
			name:          "reserved bytes set",
			mutate:        func(s *capsuleSpec) { s.reserved = [3]byte{0, 1, 0} },
			wantFirstFail: "reserved-zero",
			wantEvaluated: 9,
		},
		{
			name:          "vendor code present",
			mutate:        func(s *capsuleSpec) { s.vendorSize = 4 },
			wantFirstFail: "vendor-code-zero",
			wantEvaluated: 11,
		},
		{
			name:          "unknown support bits",
			mutate:        func(s *capsuleSpec) { s.support = 1 | 8 },
			wantFirstFail: "support-bits-known",
			wantEvaluated: 12,
		},
		{
			name:          "dependency bit set",
			mutate:        func(s *capsuleSpec) { s.support = 1 | 2 },
			wantFirstFail: "no-dependency",
			wantEvaluated: 13,
		},
		{
			name: "authentication bit clear",
			mutate: func(s *capsuleSpec) {
				s.support = 0
				s.authenticated = false
			},
			wantFirstFail: "authentication-required",
			wantEvaluated: 14,
		},
		{
			name:          "wrong wRevision",
			mutate:        func(s *capsuleSpec) { s.wRevision = 0x0100 },
			wantFirstFail: "auth-revision",
			wantEvaluated: 16,
		},
		{
			name:          "wrong certificate type",
			mutate:        func(s *capsuleSpec) { s.wCertType = 0x0002 },
			wantFirstFail: "auth-cert-type",
			wantEvaluated: 17,
		},
		{
			name:          "wrong cert type guid",
			mutate:        func(s *capsuleSpec) { s.certType = s.typeID },
			wantFirstFail: "auth-guid",
			wantEvaluated: 18,
		},
		{
			name:          "trailing bytes",
			mutate:        func(s *capsuleSpec) { s.trailing = []byte{0xFF} },
			wantFirstFail: "no-trailing-bytes",
			wantEvaluated: 19,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := validSpec()
			tt.mutate(&spec)
			c := mustDecode(t, spec.build())

			report := capsule.Validate(c, capsule.Options{Logger: quietLogger()})
			if report.OK {
				t.Fatal("Validate() OK = true, want failure")
			}
			if report.Evaluated() != tt.wantEvaluated {
				t.Errorf("Evaluated() = %d, want %d", report.Evaluated(), tt.wantEvaluated)
			}
			last := report.Results[len(report.Results)-1]
			if last.Name != tt.wantFirstFail || last.Err == nil {
				t.Errorf("first failure = %q (err %v), want %q", last.Name, last.Err, tt.wantFirstFail)
			}
			for _, res := range report.Results[:len(report.Results)-1] {
				if res.Err != nil {
					t.Errorf("rule %q failed before the expected first failure: %v", res.Name, res.Err)
				}
			}
		})
	}
}

func TestValidateForceEvaluatesEverything(t *testing.T) {
	t.Parallel()

	// Several unrelated defects at once.
	spec := validSpec()
	spec.headerSize = 20
	spec.padding = nil
	spec.fmcVersion = 7
	spec.reserved = [3]byte{1, 2, 3}
	spec.trailing = []byte{0xAB}
	c := mustDecode(t, spec.build())

	report := capsule.Validate(c, capsule.Options{Force: true, Logger: quietLogger()})
	if !report.OK {
		t.Error("force mode must return overall success")
	}
	if !report.Forced {
		t.Error("Forced = false, want true")
	}
	if want := len(capsule.Rules()); report.Evaluated() != want {
		t.Errorf("Evaluated() = %d, want %d", report.Evaluated(), want)
	}
	if got := len(report.Failures()); got < 4 {
		t.Errorf("len(Failures()) = %d, want at least 4", got)
	}
}

func TestValidateForceOnValidCapsuleIsNotForced(t *testing.T) {
	t.Parallel()

	c := mustDecode(t, validSpec().build())
	report := capsule.Validate(c, capsule.Options{Force: true, Logger: quietLogger()})
	if !report.OK || report.Forced {
		t.Errorf("OK = %v, Forced = %v; want true, false", report.OK, report.Forced)
	}
}

func TestValidateSwallowsAbsentFieldPanics(t *testing.T) {
	t.Parallel()

	// A version 2 header has no ImageCapsuleSupport: the three support
	// rules must fail through the recovered panic, not crash the engine.
	spec := validSpec()
	spec.imageVersion = 2
	c := mustDecode(t, spec.build())

	report := capsule.Validate(c, capsule.Options{Force: true, Logger: quietLogger()})
	if want := len(capsule.Rules()); report.Evaluated() != want {
		t.Fatalf("Evaluated() = %d, want %d", report.Evaluated(), want)
	}

	failed := map[string]string{}
	for _, res := range report.Failures() {
		failed[res.Name] = res.Err.Error()
	}
	for _, name := range []string{"support-bits-known", "no-dependency", "authentication-required"} {
		msg, ok := failed[name]
		if !ok {
			t.Errorf("rule %q did not fail on a version 2 header", name)
			continue
		}
		if !strings.Contains(msg, "check aborted") {
			t.Errorf("rule %q failure = %q, want a recovered panic", name, msg)
		}
	}
}

func TestValidateSwallowsNilAuthPanics(t *testing.T) {
	t.Parallel()

	// Unauthenticated payload: the auth-* rules dereference a nil Auth
	// block and must fail via the recovered panic.
	spec := validSpec()
	spec.support = 0
	spec.authenticated = false
	c := mustDecode(t, spec.build())

	report := capsule.Validate(c, capsule.Options{Force: true, Logger: quietLogger()})
	failed := map[string]bool{}
	for _, res := range report.Failures() {
		failed[res.Name] = true
	}
	for _, name := range []string{"authentication-required", "auth-length", "auth-revision", "auth-cert-type", "auth-guid"} {
		if !failed[name] {
			t.Errorf("rule %q did not fail on an unauthenticated payload", name)
		}
	}
}

func TestValidateIdempotent(t *testing.T) {
	t.Parallel()

	spec := validSpec()
	spec.reserved = [3]byte{9, 9, 9}
	c := mustDecode(t, spec.build())

	flatten := func(r capsule.Report) []string {
		var out []string
		for _, res := range r.Results {
			line := res.Name + "|" + res.Note
			if res.Err != nil {
				line += "|" + res.Err.Error()
			}
			out = append(out, line)
		}
		return out
	}

	first := flatten(capsule.Validate(c, capsule.Options{Logger: quietLogger()}))
	second := flatten(capsule.Validate(c, capsule.Options{Logger: quietLogger()}))
	if len(first) != len(second) {
		t.Fatalf("run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d differs between runs:\n first %q\nsecond %q", i, first[i], second[i])
		}
	}
}
