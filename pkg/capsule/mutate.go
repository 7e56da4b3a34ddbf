// SPDX-License-Identifier: MPL-2.0

package capsule

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// MutationPreconditionError reports a capsule mutation whose structural
// precondition does not hold. It is fatal to the whole operation and is
// never downgraded by force processing.
type MutationPreconditionError struct {
	Op     string
	Reason string
}

func (e *MutationPreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Op, e.Reason)
}

// ErrEmptyImage is returned by Tamper when the payload carries no firmware
// image bytes to flip.
var ErrEmptyImage = errors.New("firmware image is empty")

// DeAuthenticate removes the authentication block from the payload: it
// clears the authentication support bit, shrinks CapsuleImageSize and
// UpdateImageSize by the size of the removed block (dwLength plus the
// 8-byte MonotonicCount), and drops the block itself so a subsequent Encode
// produces the unauthenticated variant.
//
// The transformation is atomic: on error the capsule is unchanged. Image
// header versions before 3 cannot represent an unauthenticated payload and
// are rejected.
func (c *Capsule) DeAuthenticate() error {
	h := &c.Body.Payload.ImageHeader

	if h.Version < 3 {
		return &MutationPreconditionError{
			Op:     "de-authenticate",
			Reason: fmt.Sprintf("obsolete image header version %d not supported", h.Version),
		}
	}
	if h.capsuleSupport == nil {
		return &MutationPreconditionError{
			Op:     "de-authenticate",
			Reason: "image header carries no ImageCapsuleSupport field",
		}
	}
	auth := c.Body.Payload.Auth
	if auth == nil {
		return &MutationPreconditionError{
			Op:     "de-authenticate",
			Reason: "capsule is already unauthenticated",
		}
	}

	removed := auth.AuthInfo.Hdr.DwLength + monotonicCountSize

	*h.capsuleSupport &^= SupportAuthentication
	c.Header.CapsuleImageSize -= removed
	h.UpdateImageSize -= removed
	c.Body.Payload.Auth = nil
	return nil
}

// TamperResult records which bit Tamper flipped.
type TamperResult struct {
	ByteIndex int
	BitIndex  int
}

// Tamper flips one uniformly chosen bit of the firmware image in place,
// invalidating any embedded signature while keeping the image length and
// every size field untouched. rng may be nil, in which case the shared
// seeded source of math/rand/v2 is used.
func (c *Capsule) Tamper(rng *rand.Rand) (TamperResult, error) {
	fi := c.Body.Payload.FirmwareImage
	if len(fi) == 0 {
		return TamperResult{}, ErrEmptyImage
	}

	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	res := TamperResult{
		ByteIndex: intN(len(fi)),
		BitIndex:  intN(8),
	}
	fi[res.ByteIndex] ^= 1 << res.BitIndex
	return res, nil
}
