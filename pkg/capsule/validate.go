// SPDX-License-Identifier: MPL-2.0

package capsule

import (
	"fmt"

	"github.com/charmbracelet/log"
)

type (
	// Rule is one named structural check over a decoded Capsule. Check
	// returns nil on success; Note, when set, produces a debug remark for a
	// passing rule. Checks must not mutate the capsule.
	Rule struct {
		Name  string
		Check func(*Capsule) error
		Note  func(*Capsule) string
	}

	// RuleResult is the outcome of evaluating one rule.
	RuleResult struct {
		Name string
		// Err is nil when the rule passed. A panic raised inside the check
		// (for instance reading a version-gated field the header does not
		// carry) is captured here as an error, never propagated.
		Err error
		// Note is the debug remark of a passing rule, if any.
		Note string
	}

	// Report is the ordered result of a validation run.
	Report struct {
		// Results holds one entry per evaluated rule, in rule order. Without
		// Force, evaluation stops at the first failure, so len(Results) can
		// be shorter than the rule list.
		Results []RuleResult
		// OK is the overall outcome. With Force it is always true.
		OK bool
		// Forced records that failures were overridden by Force.
		Forced bool
	}

	// Options configures a validation run.
	Options struct {
		// Force evaluates every rule even after failures and forces the
		// overall outcome to success.
		Force bool
		// Logger receives per-rule diagnostics: failures at error level,
		// notes of passing rules at debug level. Nil uses log.Default().
		Logger *log.Logger
	}
)

// Failures returns the results of the rules that failed, in rule order.
func (r *Report) Failures() []RuleResult {
	var out []RuleResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Evaluated returns how many rules were evaluated.
func (r *Report) Evaluated() int {
	return len(r.Results)
}

// Validate runs the ordered rule list over the capsule.
//
// Without Force the run is fail-fast: the first failing rule ends
// evaluation and the report's OK is false. With Force every rule runs, each
// failure is logged, and OK is forced to true.
func Validate(c *Capsule, opts Options) Report {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	report := Report{OK: true}
	for _, rule := range rules {
		res := evalRule(rule, c)
		report.Results = append(report.Results, res)

		if res.Err != nil {
			logger.Error("capsule check failed", "rule", res.Name, "err", res.Err)
			report.OK = false
			if !opts.Force {
				return report
			}
		} else if res.Note != "" {
			logger.Debug(res.Note, "rule", res.Name)
		}
	}

	if !report.OK && opts.Force {
		logger.Warn("invalid capsule but forced to continue anyway")
		report.OK = true
		report.Forced = true
	}
	return report
}

// evalRule runs one rule, converting any panic inside the check into a rule
// failure so a malformed capsule can never abort the validation pass.
func evalRule(rule Rule, c *Capsule) (res RuleResult) {
	res.Name = rule.Name

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("check aborted: %v", p)
			res.Note = ""
		}
	}()

	if err := rule.Check(c); err != nil {
		res.Err = err
		return res
	}
	if rule.Note != nil {
		res.Note = rule.Note(c)
	}
	return res
}

// Rules returns a copy of the ordered rule list, mainly for tooling that
// wants to enumerate rule names.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// rules is evaluated in order. The order matters: fail-fast validation
// reports the first offending field of the on-disk layout, walking the
// structure front to back.
var rules = []Rule{
	{
		Name: "capsule-guid",
		Check: func(c *Capsule) error {
			if c.Header.CapsuleGuid != FMPCapsuleGUID {
				return fmt.Errorf("missing EFI_FIRMWARE_MANAGEMENT_CAPSULE_ID_GUID (got %s)", c.Header.CapsuleGuid)
			}
			return nil
		},
		Note: func(*Capsule) string { return "found EFI_FIRMWARE_MANAGEMENT_CAPSULE_ID_GUID" },
	},
	{
		Name: "header-size",
		Check: func(c *Capsule) error {
			if c.Header.HeaderSize < headerSize {
				return fmt.Errorf("HeaderSize %d < %d, too small", c.Header.HeaderSize, headerSize)
			}
			return nil
		},
		Note: func(c *Capsule) string { return fmt.Sprintf("HeaderSize: %d", c.Header.HeaderSize) },
	},
	{
		Name: "flags",
		Check: func(c *Capsule) error {
			if bad := c.Header.Flags &^ KnownFlags; bad != 0 {
				return fmt.Errorf("bad Flags 0x%08x (unknown bits 0x%08x)", c.Header.Flags, bad)
			}
			return nil
		},
		Note: func(c *Capsule) string { return fmt.Sprintf("Flags: 0x%08x", c.Header.Flags) },
	},
	{
		Name: "image-size",
		Check: func(c *Capsule) error {
			if c.Header.CapsuleImageSize < headerSize {
				return fmt.Errorf("CapsuleImageSize %d < %d, too small", c.Header.CapsuleImageSize, headerSize)
			}
			return nil
		},
		Note: func(c *Capsule) string { return fmt.Sprintf("CapsuleImageSize: %d", c.Header.CapsuleImageSize) },
	},
	{
		Name: "fmc-version",
		Check: func(c *Capsule) error {
			if v := c.Body.FMCHeader.Version; v != 1 {
				return fmt.Errorf("unknown FirmwareManagementCapsuleHeader Version %d, not 1", v)
			}
			return nil
		},
		Note: func(*Capsule) string { return "found FirmwareManagementCapsuleHeader Version 1" },
	},
	{
		Name: "no-embedded-drivers",
		Check: func(c *Capsule) error {
			if n := c.Body.FMCHeader.EmbeddedDriverCount; n != 0 {
				return fmt.Errorf("non-zero EmbeddedDriverCount %d; not implemented", n)
			}
			return nil
		},
		Note: func(*Capsule) string { return "zero embedded drivers" },
	},
	{
		Name: "single-payload",
		Check: func(c *Capsule) error {
			if n := c.Body.FMCHeader.PayloadItemCount; n != 1 {
				return fmt.Errorf("%d payload item(s), not exactly one; not implemented", n)
			}
			return nil
		},
		Note: func(*Capsule) string { return "exactly one payload" },
	},
	{
		Name: "image-header-version",
		Check: func(c *Capsule) error {
			if v := c.Body.Payload.ImageHeader.Version; v != 3 {
				return fmt.Errorf("bad image header Version %d, not 3", v)
			}
			return nil
		},
		Note: func(*Capsule) string { return "found image header Version 3" },
	},
	{
		Name: "reserved-zero",
		Check: func(c *Capsule) error {
			if r := c.Body.Payload.ImageHeader.Reserved; r != [3]byte{} {
				return fmt.Errorf("non-zero reserved_bytes %v", r)
			}
			return nil
		},
		Note: func(*Capsule) string { return "all-zero reserved_bytes" },
	},
	{
		Name: "update-image-size",
		Check: func(c *Capsule) error {
			if s := c.Body.Payload.ImageHeader.UpdateImageSize; s <= 32 {
				return fmt.Errorf("invalid UpdateImageSize %d", s)
			}
			return nil
		},
		Note: func(c *Capsule) string {
			return fmt.Sprintf("UpdateImageSize: %d", c.Body.Payload.ImageHeader.UpdateImageSize)
		},
	},
	{
		Name: "vendor-code-zero",
		Check: func(c *Capsule) error {
			if s := c.Body.Payload.ImageHeader.UpdateVendorCodeSize; s != 0 {
				return fmt.Errorf("non-zero UpdateVendorCodeSize %d; not implemented", s)
			}
			return nil
		},
		Note: func(*Capsule) string { return "zero vendor code bytes" },
	},
	{
		Name: "support-bits-known",
		Check: func(c *Capsule) error {
			s := c.Body.Payload.ImageHeader.CapsuleSupport()
			if bad := s &^ KnownSupportBits; bad != 0 {
				return fmt.Errorf("invalid ImageCapsuleSupport 0x%x (unknown bits 0x%x)", s, bad)
			}
			return nil
		},
		Note: func(c *Capsule) string {
			return fmt.Sprintf("ImageCapsuleSupport: 0x%x", c.Body.Payload.ImageHeader.CapsuleSupport())
		},
	},
	{
		Name: "no-dependency",
		Check: func(c *Capsule) error {
			if s := c.Body.Payload.ImageHeader.CapsuleSupport(); s&SupportDependency != 0 {
				return fmt.Errorf("dependencies not implemented (ImageCapsuleSupport: 0x%x)", s)
			}
			return nil
		},
		Note: func(*Capsule) string { return "no dependency" },
	},
	{
		Name: "authentication-required",
		Check: func(c *Capsule) error {
			if s := c.Body.Payload.ImageHeader.CapsuleSupport(); s&SupportAuthentication == 0 {
				return fmt.Errorf("missing authentication flag (ImageCapsuleSupport: 0x%x)", s)
			}
			return nil
		},
		Note: func(*Capsule) string { return "found authentication flag" },
	},
	{
		Name: "auth-length",
		Check: func(c *Capsule) error {
			if l := c.Body.Payload.Auth.AuthInfo.Hdr.DwLength; l < 9 {
				return fmt.Errorf("dwLength %d < 9, too small", l)
			}
			return nil
		},
		Note: func(c *Capsule) string {
			return fmt.Sprintf("dwLength: %d", c.Body.Payload.Auth.AuthInfo.Hdr.DwLength)
		},
	},
	{
		Name: "auth-revision",
		Check: func(c *Capsule) error {
			if r := c.Body.Payload.Auth.AuthInfo.Hdr.WRevision; r != AuthRevision {
				return fmt.Errorf("unknown wRevision 0x%04x, not 0x%04x", r, AuthRevision)
			}
			return nil
		},
		Note: func(*Capsule) string { return "found wRevision 0x0200" },
	},
	{
		Name: "auth-cert-type",
		Check: func(c *Capsule) error {
			if t := c.Body.Payload.Auth.AuthInfo.Hdr.WCertificateType; t != WinCertTypeEFIGUID {
				return fmt.Errorf("missing WIN_CERT_TYPE_EFI_GUID (wCertificateType: 0x%04x)", t)
			}
			return nil
		},
		Note: func(*Capsule) string { return "found WIN_CERT_TYPE_EFI_GUID" },
	},
	{
		Name: "auth-guid",
		Check: func(c *Capsule) error {
			if t := c.Body.Payload.Auth.AuthInfo.CertType; t != PKCS7CertGUID {
				return fmt.Errorf("missing EFI_CERT_TYPE_PKCS7_GUID (CertType: %s)", t)
			}
			return nil
		},
		Note: func(*Capsule) string { return "found EFI_CERT_TYPE_PKCS7_GUID" },
	},
	{
		Name: "no-trailing-bytes",
		Check: func(c *Capsule) error {
			if n := len(c.Remaining); n != 0 {
				return fmt.Errorf("remaining %d byte(s) after payload", n)
			}
			return nil
		},
		Note: func(*Capsule) string { return "no remaining bytes" },
	},
}
