package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

// BannedUser represents an account banned by the bot
type BannedUser struct {
	GuildID  string
	UserID   string
	Reason   string
	BannedAt int64
	IsBot    bool
	AddedBy  string // who added the bot, when IsBot
}

// GetAntiSpamPolicy returns the stored policy, or the defaults when none is stored.
func (d *Database) GetAntiSpamPolicy(ctx context.Context, guildID string) (models.AntiSpamPolicy, error) {
	var p models.AntiSpamPolicy
	err := d.db.QueryRowContext(ctx,
		`SELECT window_seconds, max_messages, max_warnings FROM anti_spam_policies WHERE guild_id = ?`,
		guildID,
	).Scan(&p.WindowSeconds, &p.MaxMessagesPerWindow, &p.MaxWarnings)

	if err == sql.ErrNoRows {
		return models.DefaultAntiSpamPolicy(), nil
	}
	if err != nil {
		return models.AntiSpamPolicy{}, err
	}
	return p.Normalize(), nil
}

func (d *Database) SetAntiSpamPolicy(ctx context.Context, guildID string, p models.AntiSpamPolicy) error {
	p = p.Normalize()
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO anti_spam_policies (guild_id, window_seconds, max_messages, max_warnings, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		guildID, p.WindowSeconds, p.MaxMessagesPerWindow, p.MaxWarnings, time.Now().Unix(),
	)
	return err
}

// GetLogChannel returns the channel bound to t, or nil when none is configured.
func (d *Database) GetLogChannel(ctx context.Context, guildID string, t models.LogChannelType) (*models.LogChannel, error) {
	ch := &models.LogChannel{GuildID: guildID, Type: t}
	err := d.db.QueryRowContext(ctx,
		`SELECT channel_id, channel_name FROM log_channels WHERE guild_id = ? AND channel_type = ?`,
		guildID, string(t),
	).Scan(&ch.ID, &ch.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (d *Database) SetLogChannel(ctx context.Context, ch *models.LogChannel) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO log_channels (guild_id, channel_type, channel_id, channel_name) VALUES (?, ?, ?, ?)`,
		ch.GuildID, string(ch.Type), ch.ID, ch.Name,
	)
	return err
}

// AddBannedUser records an account banned by the bot
func (d *Database) AddBannedUser(ctx context.Context, u *BannedUser) error {
	if u.BannedAt == 0 {
		u.BannedAt = time.Now().Unix()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO banned_users (guild_id, user_id, reason, banned_at, is_bot, added_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.GuildID, u.UserID, u.Reason, u.BannedAt, u.IsBot, u.AddedBy,
	)
	return err
}

// GetBannedUser returns the ban record, or nil if the account was never banned by the bot
func (d *Database) GetBannedUser(ctx context.Context, guildID, userID string) (*BannedUser, error) {
	u := &BannedUser{GuildID: guildID, UserID: userID}
	err := d.db.QueryRowContext(ctx,
		`SELECT reason, banned_at, is_bot, added_by FROM banned_users WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	).Scan(&u.Reason, &u.BannedAt, &u.IsBot, &u.AddedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) RemoveBannedUser(ctx context.Context, guildID, userID string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM banned_users WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	)
	return err
}
