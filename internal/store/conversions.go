package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mediaagent/internal/catalog"
)

const conversionColumns = "id, original_video_id, original_filename, converted_filename, conversion_status, error_message, host, created_at, updated_at"

func scanConversion(row rowScanner) (*catalog.Conversion, error) {
	var (
		conv      catalog.Conversion
		videoID   sql.NullInt64
		status    string
		message   sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&conv.ID, &videoID, &conv.OriginalFilename, &conv.ConvertedFilename, &status, &message, &conv.Host, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	conv.OriginalVideoID = nullInt(videoID)
	parsed, ok := catalog.ParseConversionStatus(status)
	if !ok {
		return nil, fmt.Errorf("conversion %d: unknown status %q", conv.ID, status)
	}
	conv.Status = parsed
	conv.ErrorMessage = message.String
	if t, err := parseTimeString(createdAt); err == nil {
		conv.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		conv.UpdatedAt = t
	}
	return &conv, nil
}

type conversionSource struct{ s *Store }

func (src conversionSource) Lookup(ctx context.Context, key catalog.Key) (*catalog.Conversion, error) {
	clause, args, err := where("conversion", map[string]string{
		catalog.FieldOriginalFilename: "original_filename",
	}, nil, key)
	if err != nil {
		return nil, err
	}
	conv, err := queryOne(ctx, src.s, scanConversion, "SELECT "+conversionColumns+" FROM video_conversions WHERE "+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("lookup conversion %s: %w", key, err)
	}
	return conv, nil
}

func (src conversionSource) Insert(ctx context.Context, conv *catalog.Conversion) (int64, error) {
	now := time.Now().UTC()
	if conv.Status == "" {
		conv.Status = catalog.ConversionPending
	}
	id, err := src.s.insertReturningID(ctx,
		`INSERT INTO video_conversions (original_video_id, original_filename, converted_filename, conversion_status, error_message, host, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(conv.OriginalVideoID), conv.OriginalFilename, conv.ConvertedFilename, string(conv.Status),
		nullableString(conv.ErrorMessage), conv.Host, formatTime(now), formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("insert conversion %q: %w", conv.OriginalFilename, err)
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now
	return id, nil
}

// Conversions returns the ledger source.
func (s *Store) Conversions() catalog.Source[catalog.Conversion] { return conversionSource{s: s} }

// ResetConversion returns an existing ledger row to pending for a new attempt.
func (s *Store) ResetConversion(ctx context.Context, id int64, convertedFilename string, videoID int64, host string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE video_conversions
         SET converted_filename = ?, original_video_id = ?, conversion_status = ?, error_message = NULL, host = ?, updated_at = ?
         WHERE id = ?`,
		convertedFilename, nullableID(videoID), string(catalog.ConversionPending), host, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("reset conversion %d: %w", id, err)
	}
	return expectAffected(res, "conversion", id)
}

// UpdateConversionStatus records the outcome of a conversion attempt.
func (s *Store) UpdateConversionStatus(ctx context.Context, id int64, status catalog.ConversionStatus, message string) error {
	if _, ok := catalog.ParseConversionStatus(string(status)); !ok {
		return fmt.Errorf("conversion %d: invalid status %q", id, status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE video_conversions SET conversion_status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), nullableString(strings.TrimSpace(message)), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update conversion %d: %w", id, err)
	}
	return expectAffected(res, "conversion", id)
}

// ListConversions returns ledger rows newest first, filtered by status and
// host when those are non-empty.
func (s *Store) ListConversions(ctx context.Context, status catalog.ConversionStatus, host string) ([]catalog.Conversion, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if status != "" {
		clauses = append(clauses, "conversion_status = ?")
		args = append(args, string(status))
	}
	if host != "" {
		clauses = append(clauses, "host = ?")
		args = append(args, host)
	}
	query := "SELECT " + conversionColumns + " FROM video_conversions"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query = s.rebind(query + " ORDER BY id DESC")

	var out []catalog.Conversion
	err := s.retry(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			conv, err := scanConversion(rows)
			if err != nil {
				return err
			}
			out = append(out, *conv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	return out, nil
}

// ConversionCounts tallies ledger rows by status across every host.
func (s *Store) ConversionCounts(ctx context.Context) (map[catalog.ConversionStatus]int, error) {
	ctx = ensureContext(ctx)
	query := s.rebind("SELECT conversion_status, COUNT(*) FROM video_conversions GROUP BY conversion_status")
	counts := make(map[catalog.ConversionStatus]int)
	err := s.retry(ctx, func() error {
		clear(counts)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				status string
				n      int
			)
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			counts[catalog.ConversionStatus(status)] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("count conversions: %w", err)
	}
	return counts, nil
}

var _ catalog.Backend = (*Store)(nil)
