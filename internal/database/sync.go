package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

// EnsureSecurityProfile creates the profile row for a guild if missing and keeps
// the owner in sync with the platform's view of the guild.
func (d *Database) EnsureSecurityProfile(ctx context.Context, guildID, ownerID string) error {
	now := time.Now().Unix()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO security_profiles (guild_id, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET owner_id = excluded.owner_id, updated_at = excluded.updated_at
		 WHERE security_profiles.owner_id != excluded.owner_id`,
		guildID, ownerID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure profile for guild %s: %w", guildID, err)
	}
	return nil
}

// GetSecurityProfile loads a guild's profile. A guild without a row gets an empty profile.
func (d *Database) GetSecurityProfile(ctx context.Context, guildID string) (*models.SecurityProfile, error) {
	p := &models.SecurityProfile{GuildID: guildID}

	err := d.db.QueryRowContext(ctx,
		`SELECT owner_id FROM security_profiles WHERE guild_id = ?`, guildID,
	).Scan(&p.OwnerID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT kind, target_id FROM profile_entries WHERE guild_id = ? ORDER BY created_at, target_id`, guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, target string
		if err := rows.Scan(&kind, &target); err != nil {
			return nil, err
		}
		p.AddEntry(models.ProfileEntryKind(kind), target)
	}

	return p, rows.Err()
}

// AddProfileEntry adds targetID to the list named by kind.
func (d *Database) AddProfileEntry(ctx context.Context, guildID string, kind models.ProfileEntryKind, targetID string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown profile entry kind %q", kind)
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO profile_entries (guild_id, kind, target_id, created_at) VALUES (?, ?, ?, ?)`,
		guildID, string(kind), targetID, time.Now().UnixNano(),
	)
	return err
}

// RemoveProfileEntry removes targetID from the list named by kind.
func (d *Database) RemoveProfileEntry(ctx context.Context, guildID string, kind models.ProfileEntryKind, targetID string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM profile_entries WHERE guild_id = ? AND kind = ? AND target_id = ?`,
		guildID, string(kind), targetID,
	)
	return err
}
