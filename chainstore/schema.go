package chainstore

import (
	"encoding/binary"
	"fmt"

	"github.com/satindex/satindex/db"
)

// SchemaVersion is the current on-disk layout version (§6: "Version-
// tagged schema header; incompatible versions are refused rather than
// silently migrated"). Bump this whenever a table's key or value
// encoding changes in a way old data can't be read under.
const SchemaVersion = 1

var schemaVersionKey = db.SchemaMeta.Key([]byte("version"))

// ErrSchemaMismatch is returned by CheckSchema when an existing database
// was written by an incompatible version of this program.
type ErrSchemaMismatch struct {
	Found, Want uint32
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("chainstore: database schema version %d is incompatible with this program's version %d", e.Found, e.Want)
}

// CheckSchema verifies (and, for a brand-new database, initializes) the
// schema version header. It must be called once before the store is used
// for anything else.
func CheckSchema(helper db.Helper) error {
	return helper.Update(func(w db.IndexedBatch) error {
		has, err := w.Has(schemaVersionKey)
		if err != nil {
			return err
		}
		if !has {
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, SchemaVersion)
			return w.Put(schemaVersionKey, buf)
		}
		var found uint32
		if err := w.Get(schemaVersionKey, func(value []byte) error {
			if len(value) != 4 {
				return fmt.Errorf("chainstore: malformed schema version header")
			}
			found = binary.BigEndian.Uint32(value)
			return nil
		}); err != nil {
			return err
		}
		if found != SchemaVersion {
			return &ErrSchemaMismatch{Found: found, Want: SchemaVersion}
		}
		return nil
	})
}
