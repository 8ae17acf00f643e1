package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

// SaveLockdown stores or replaces the active lockdown of a guild.
func (d *Database) SaveLockdown(ctx context.Context, rec *models.LockdownRecord) error {
	slowmode := rec.Slowmode
	if slowmode == nil {
		slowmode = map[string]int{}
	}
	data, err := json.Marshal(slowmode)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO lockdowns (guild_id, prev_level, slowmode, reason, revert_at) VALUES (?, ?, ?, ?, ?)`,
		rec.GuildID, rec.PrevLevel, string(data), rec.Reason, rec.RevertAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save lockdown for guild %s: %w", rec.GuildID, err)
	}
	return nil
}

func (d *Database) DeleteLockdown(ctx context.Context, guildID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM lockdowns WHERE guild_id = ?`, guildID)
	return err
}

// ListLockdowns returns every lockdown that was active when the process stopped.
func (d *Database) ListLockdowns(ctx context.Context) ([]*models.LockdownRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT guild_id, prev_level, slowmode, reason, revert_at FROM lockdowns ORDER BY revert_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LockdownRecord
	for rows.Next() {
		var (
			rec      models.LockdownRecord
			data     string
			revertAt int64
		)
		if err := rows.Scan(&rec.GuildID, &rec.PrevLevel, &data, &rec.Reason, &revertAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &rec.Slowmode); err != nil {
			return nil, fmt.Errorf("corrupt slowmode snapshot for guild %s: %w", rec.GuildID, err)
		}
		rec.RevertAt = time.Unix(revertAt, 0)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (d *Database) AddLinkAllowedChannel(ctx context.Context, guildID, channelID string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO link_allowed_channels (guild_id, channel_id, created_at) VALUES (?, ?, ?)`,
		guildID, channelID, time.Now().Unix(),
	)
	return err
}

func (d *Database) RemoveLinkAllowedChannel(ctx context.Context, guildID, channelID string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM link_allowed_channels WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID,
	)
	return err
}

// LinkAllowedChannels lists the channels of a guild where ordinary links are permitted.
func (d *Database) LinkAllowedChannels(ctx context.Context, guildID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT channel_id FROM link_allowed_channels WHERE guild_id = ? ORDER BY created_at, channel_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
