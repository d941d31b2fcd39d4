package joinbus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/database"
)

const overrideLookupTimeout = 5 * time.Second

// StoredJoinMap is a join map as persisted by SQLiteStore.
type StoredJoinMap struct {
	DeviceKey string         `json:"device"`
	BusID     string         `json:"bus"`
	JoinStart uint32         `json:"join_start"`
	UpdatedAt time.Time      `json:"updated_at"`
	Joins     []display.Join `json:"joins"`
}

// SQLiteStore persists linked join maps and operator overrides in the
// join_maps, join_map_entries and join_map_overrides tables.
type SQLiteStore struct {
	db     *database.DB
	logger Logger
	now    func() time.Time
}

// NewSQLiteStore creates a store on a migrated database.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// SetLogger sets the logger for override lookup failures.
func (s *SQLiteStore) SetLogger(logger Logger) {
	s.logger = logger
}

// SaveJoinMap replaces the stored copy of deviceKey's join map.
func (s *SQLiteStore) SaveJoinMap(ctx context.Context, busID, deviceKey string, m *display.JoinMap) error {
	now := s.now().UTC().Format(time.RFC3339)

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO join_maps (map_key, bus_id, join_start, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(map_key) DO UPDATE SET
				bus_id = excluded.bus_id,
				join_start = excluded.join_start,
				updated_at = excluded.updated_at`,
			deviceKey, busID, m.JoinStart(), now)
		if err != nil {
			return fmt.Errorf("upserting join map: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM join_map_entries WHERE map_key = ?", deviceKey); err != nil {
			return fmt.Errorf("clearing join map entries: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO join_map_entries
				(map_key, name, join_number, join_span, join_type, capabilities, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing entry insert: %w", err)
		}
		defer stmt.Close()

		for _, j := range m.Joins() {
			if _, err := stmt.ExecContext(ctx, deviceKey, j.Name, j.JoinNumber, j.JoinSpan,
				string(j.Metadata.Type), string(j.Metadata.Capability), j.Metadata.Description); err != nil {
				return fmt.Errorf("inserting join %s: %w", j.Name, err)
			}
		}
		return nil
	})
}

// LoadJoinMap returns the stored join map for deviceKey, or
// ErrJoinMapNotFound.
func (s *SQLiteStore) LoadJoinMap(ctx context.Context, deviceKey string) (StoredJoinMap, error) {
	var (
		out       StoredJoinMap
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT map_key, bus_id, join_start, updated_at FROM join_maps WHERE map_key = ?",
		deviceKey).Scan(&out.DeviceKey, &out.BusID, &out.JoinStart, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredJoinMap{}, fmt.Errorf("%w: %s", ErrJoinMapNotFound, deviceKey)
	}
	if err != nil {
		return StoredJoinMap{}, fmt.Errorf("querying join map: %w", err)
	}
	out.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by SaveJoinMap

	joins, err := s.loadEntries(ctx, deviceKey)
	if err != nil {
		return StoredJoinMap{}, err
	}
	out.Joins = joins
	return out, nil
}

// ListJoinMaps returns every stored join map ordered by device key.
func (s *SQLiteStore) ListJoinMaps(ctx context.Context) ([]StoredJoinMap, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT map_key, bus_id, join_start, updated_at FROM join_maps ORDER BY map_key")
	if err != nil {
		return nil, fmt.Errorf("querying join maps: %w", err)
	}

	var maps []StoredJoinMap
	for rows.Next() {
		var m StoredJoinMap
		var updatedAt string
		if err := rows.Scan(&m.DeviceKey, &m.BusID, &m.JoinStart, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning join map: %w", err)
		}
		m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by SaveJoinMap
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating join maps: %w", err)
	}
	// Single connection: release it before querying entries.
	rows.Close()

	for i := range maps {
		joins, err := s.loadEntries(ctx, maps[i].DeviceKey)
		if err != nil {
			return nil, err
		}
		maps[i].Joins = joins
	}
	return maps, nil
}

func (s *SQLiteStore) loadEntries(ctx context.Context, deviceKey string) ([]display.Join, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, join_number, join_span, join_type, capabilities, description
		FROM join_map_entries
		WHERE map_key = ?
		ORDER BY join_type, join_number, name`, deviceKey)
	if err != nil {
		return nil, fmt.Errorf("querying join map entries: %w", err)
	}
	defer rows.Close()

	var joins []display.Join
	for rows.Next() {
		var j display.Join
		var joinType, capability string
		if err := rows.Scan(&j.Name, &j.JoinNumber, &j.JoinSpan, &joinType, &capability, &j.Metadata.Description); err != nil {
			return nil, fmt.Errorf("scanning join map entry: %w", err)
		}
		j.Metadata.Type = display.JoinType(joinType)
		j.Metadata.Capability = display.JoinCapability(capability)
		joins = append(joins, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating join map entries: %w", err)
	}
	return joins, nil
}

// SetOverride stores an override for one join of a join-map key.
func (s *SQLiteStore) SetOverride(ctx context.Context, joinMapKey, joinName string, o display.JoinOverride) error {
	if o.JoinNumber == 0 {
		return fmt.Errorf("%w: join_number must be >= 1", display.ErrInvalidJoin)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO join_map_overrides (map_key, name, join_number, join_span, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(map_key, name) DO UPDATE SET
			join_number = excluded.join_number,
			join_span = excluded.join_span,
			updated_at = excluded.updated_at`,
		joinMapKey, joinName, o.JoinNumber, o.JoinSpan, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving override %s/%s: %w", joinMapKey, joinName, err)
	}
	return nil
}

// DeleteOverride removes one override. Missing rows are not an error.
func (s *SQLiteStore) DeleteOverride(ctx context.Context, joinMapKey, joinName string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM join_map_overrides WHERE map_key = ? AND name = ?",
		joinMapKey, joinName); err != nil {
		return fmt.Errorf("deleting override %s/%s: %w", joinMapKey, joinName, err)
	}
	return nil
}

// LoadOverrides returns the override table for joinMapKey; an empty map
// when none are stored.
func (s *SQLiteStore) LoadOverrides(ctx context.Context, joinMapKey string) (map[string]display.JoinOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, join_number, join_span FROM join_map_overrides WHERE map_key = ?", joinMapKey)
	if err != nil {
		return nil, fmt.Errorf("querying overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]display.JoinOverride)
	for rows.Next() {
		var name string
		var o display.JoinOverride
		if err := rows.Scan(&name, &o.JoinNumber, &o.JoinSpan); err != nil {
			return nil, fmt.Errorf("scanning override: %w", err)
		}
		out[name] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating overrides: %w", err)
	}
	return out, nil
}

// JoinOverrides implements display.OverrideSource. A key with no stored
// rows, or a failed lookup, reports no table.
func (s *SQLiteStore) JoinOverrides(joinMapKey string) (map[string]display.JoinOverride, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), overrideLookupTimeout)
	defer cancel()

	overrides, err := s.LoadOverrides(ctx, joinMapKey)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("override lookup failed", "join_map_key", joinMapKey, "error", err)
		}
		return nil, false
	}
	if len(overrides) == 0 {
		return nil, false
	}
	return overrides, true
}
