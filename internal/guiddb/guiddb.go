// SPDX-License-Identifier: MPL-2.0

package guiddb

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"capsule-cli/pkg/cueutil"
	"capsule-cli/pkg/efiguid"
)

// Unknown is returned by Lookup for GUIDs absent from the database.
const Unknown = "Unknown"

//go:embed db_schema.cue
var dbSchema []byte

//go:embed known_guids.cue
var defaultDB []byte

var (
	// ErrDuplicateGUID is the sentinel error wrapped by DuplicateGUIDError.
	ErrDuplicateGUID = errors.New("duplicate guid")
	// ErrDuplicateDescription is the sentinel error wrapped by DuplicateDescriptionError.
	ErrDuplicateDescription = errors.New("duplicate description")
)

type (
	// Entry associates a GUID with its human-readable description.
	Entry struct {
		GUID        efiguid.GUID
		Description string
	}

	// DB is a validated, loaded GUIDs database.
	DB struct {
		entries []Entry
	}

	// DuplicateGUIDError is returned when two database entries share a GUID.
	// It wraps ErrDuplicateGUID for errors.Is() compatibility.
	DuplicateGUIDError struct {
		GUID        string
		Description string
		// FirstDescription is the description of the entry that used the GUID first.
		FirstDescription string
	}

	// DuplicateDescriptionError is returned when two database entries share a
	// description. It wraps ErrDuplicateDescription for errors.Is() compatibility.
	DuplicateDescriptionError struct {
		Description string
		GUID        string
		// FirstGUID is the GUID of the entry that used the description first.
		FirstGUID string
	}

	// rawEntry mirrors the #KnownGuid schema definition.
	rawEntry struct {
		GUID        string `json:"guid"`
		Description string `json:"description"`
	}

	// rawDatabase mirrors the #Database schema definition.
	rawDatabase struct {
		GuidToolDatabase bool       `json:"guid_tool_database"`
		KnownGuids       []rawEntry `json:"known_guids"`
	}
)

// Error implements the error interface.
func (e *DuplicateGUIDError) Error() string {
	return fmt.Sprintf("duplicate guid %q for description %q, already used for description %q",
		e.GUID, e.Description, e.FirstDescription)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (*DuplicateGUIDError) Unwrap() error { return ErrDuplicateGUID }

// Error implements the error interface.
func (e *DuplicateDescriptionError) Error() string {
	return fmt.Sprintf("duplicate description %q for guid %q, already used for guid %q",
		e.Description, e.GUID, e.FirstGUID)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (*DuplicateDescriptionError) Unwrap() error { return ErrDuplicateDescription }

// Load parses and validates the embedded default database.
func Load() (*DB, error) {
	return parse(defaultDB, "known_guids.cue")
}

// LoadFile parses and validates a database from a CUE file on disk.
func LoadFile(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GUIDs database: %w", err)
	}
	return parse(data, path)
}

// parse validates raw CUE bytes against the #Database schema and checks the
// constraints the schema cannot express: GUID and description uniqueness.
func parse(data []byte, filename string) (*DB, error) {
	result, err := cueutil.ParseAndDecode[rawDatabase](
		dbSchema,
		data,
		"#Database",
		cueutil.WithFilename(filename),
	)
	if err != nil {
		return nil, err
	}
	raw := result.Value

	db := &DB{entries: make([]Entry, 0, len(raw.KnownGuids))}
	guids := make(map[efiguid.GUID]string, len(raw.KnownGuids))
	descrs := make(map[string]string, len(raw.KnownGuids))

	for _, x := range raw.KnownGuids {
		g, err := efiguid.Parse(x.GUID)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %q: %w", filename, x.Description, err)
		}

		if first, ok := descrs[x.Description]; ok {
			return nil, &DuplicateDescriptionError{
				Description: x.Description,
				GUID:        x.GUID,
				FirstGUID:   first,
			}
		}
		if first, ok := guids[g]; ok {
			return nil, &DuplicateGUIDError{
				GUID:             x.GUID,
				Description:      x.Description,
				FirstDescription: first,
			}
		}

		descrs[x.Description] = x.GUID
		guids[g] = x.Description
		db.entries = append(db.entries, Entry{GUID: g, Description: x.Description})
	}

	return db, nil
}

// Lookup returns the description associated with g, or Unknown when the
// database has no matching entry.
func (db *DB) Lookup(g efiguid.GUID) string {
	for _, e := range db.entries {
		if e.GUID.Equal(g) {
			return e.Description
		}
	}
	return Unknown
}

// Entries returns a copy of the database entries in file order.
func (db *DB) Entries() []Entry {
	out := make([]Entry, len(db.entries))
	copy(out, db.entries)
	return out
}

// Len returns the number of entries in the database.
func (db *DB) Len() int { return len(db.entries) }
