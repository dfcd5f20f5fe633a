package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Supported games for registrations.
const (
	GameCSGO = "csgo"
	GameLOL  = "lol"
)

// ErrDuplicate is returned when a registration would collide with an
// existing one on either the server identity or the external account.
var ErrDuplicate = errors.New("already registered")

// ErrNotRegistered is returned when no registration exists for the key.
var ErrNotRegistered = errors.New("not registered")

// Registration binds a server identity to an external game account.
type Registration struct {
	ID         int64
	Game       string
	TSUID      string
	TSNickname string
	ExternalID string
	// SummonerName, Region and Queue are only set for GameLOL.
	SummonerName sql.NullString
	Region       sql.NullString
	Queue        sql.NullString
	CreatedAt    time.Time
}

// CreateRegistration inserts a registration, rejecting duplicates on either
// the server identity or the external account id within the same game.
func (s *Store) CreateRegistration(ctx context.Context, reg *Registration) error {
	var existing int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM registrations
		WHERE game = ? AND (ts_uid = ? OR external_id = ?)
	`, reg.Game, reg.TSUID, reg.ExternalID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("check existing registration: %w", err)
	}
	if existing > 0 {
		return ErrDuplicate
	}

	reg.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (game, ts_uid, ts_nickname, external_id, summoner_name, region, queue, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, reg.Game, reg.TSUID, reg.TSNickname, reg.ExternalID,
		reg.SummonerName, reg.Region, reg.Queue, reg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		reg.ID = id
	}
	return nil
}

// RegistrationByUID returns the registration for a server identity.
func (s *Store) RegistrationByUID(ctx context.Context, game, tsUID string) (*Registration, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectRegistration+`
		WHERE game = ? AND ts_uid = ?
	`, game, tsUID))
}

// RegistrationByExternalID returns the registration for an external account.
func (s *Store) RegistrationByExternalID(ctx context.Context, game, externalID string) (*Registration, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectRegistration+`
		WHERE game = ? AND external_id = ?
	`, game, externalID))
}

// DeleteRegistration removes the registration for a server identity.
func (s *Store) DeleteRegistration(ctx context.Context, game, tsUID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM registrations WHERE game = ? AND ts_uid = ?", game, tsUID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n == 0 {
		return ErrNotRegistered
	}
	return nil
}

// ListRegistrations returns all registrations for a game, oldest first.
func (s *Store) ListRegistrations(ctx context.Context, game string) ([]*Registration, error) {
	rows, err := s.db.QueryContext(ctx, selectRegistration+`
		WHERE game = ? ORDER BY created_at, id
	`, game)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		reg := &Registration{}
		if err := rows.Scan(
			&reg.ID, &reg.Game, &reg.TSUID, &reg.TSNickname, &reg.ExternalID,
			&reg.SummonerName, &reg.Region, &reg.Queue, &reg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

const selectRegistration = `
	SELECT id, game, ts_uid, ts_nickname, external_id, summoner_name, region, queue, created_at
	FROM registrations
`

func (s *Store) scanOne(row *sql.Row) (*Registration, error) {
	reg := &Registration{}
	err := row.Scan(
		&reg.ID, &reg.Game, &reg.TSUID, &reg.TSNickname, &reg.ExternalID,
		&reg.SummonerName, &reg.Region, &reg.Queue, &reg.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	return reg, nil
}
