// SPDX-License-Identifier: MPL-2.0

package capsule

import (
	"fmt"
	"os"
)

// ExtractImage writes the firmware image bytes verbatim to path. No
// validation gates the export; a capsule that failed validation (for
// instance under force processing) can still have its image extracted.
func (c *Capsule) ExtractImage(path string) error {
	if err := os.WriteFile(path, c.Body.Payload.FirmwareImage, 0o644); err != nil {
		return fmt.Errorf("extract firmware image: %w", err)
	}
	return nil
}

// WriteFile encodes the capsule and writes the result to path.
func (c *Capsule) WriteFile(path string) error {
	if err := os.WriteFile(path, c.Encode(), 0o644); err != nil {
		return fmt.Errorf("write capsule: %w", err)
	}
	return nil
}
