package store

import "context"

// SetSchemaVersionForTest overwrites the recorded schema version.
func SetSchemaVersionForTest(s *Store, version int) error {
	_, err := s.db.ExecContext(context.Background(), s.rebind("UPDATE schema_version SET version = ?"), version)
	return err
}
