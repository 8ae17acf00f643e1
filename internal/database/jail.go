package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/styxgzi/nervesx-bot/internal/models"
)

// CreateJailRecord stores rec unless a record for the same member already
// exists. created is false when an earlier snapshot was kept.
func (d *Database) CreateJailRecord(ctx context.Context, rec *models.JailRecord) (created bool, err error) {
	roles := rec.RoleIDs
	if roles == nil {
		roles = []string{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return false, err
	}
	if rec.JailedAt.IsZero() {
		rec.JailedAt = time.Now()
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO jailed_members (guild_id, member_id, role_ids, reason, jailed_at) VALUES (?, ?, ?, ?, ?)`,
		rec.GuildID, rec.MemberID, string(data), rec.Reason, rec.JailedAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create jail record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetJailRecord returns the record for a member, or nil if the member is not jailed.
func (d *Database) GetJailRecord(ctx context.Context, guildID, memberID string) (*models.JailRecord, error) {
	var (
		data     string
		jailedAt int64
	)
	rec := &models.JailRecord{GuildID: guildID, MemberID: memberID}
	err := d.db.QueryRowContext(ctx,
		`SELECT role_ids, reason, jailed_at FROM jailed_members WHERE guild_id = ? AND member_id = ?`,
		guildID, memberID,
	).Scan(&data, &rec.Reason, &jailedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &rec.RoleIDs); err != nil {
		return nil, fmt.Errorf("corrupt role snapshot for %s/%s: %w", guildID, memberID, err)
	}
	rec.JailedAt = time.Unix(jailedAt, 0)
	return rec, nil
}

func (d *Database) DeleteJailRecord(ctx context.Context, guildID, memberID string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM jailed_members WHERE guild_id = ? AND member_id = ?`,
		guildID, memberID,
	)
	return err
}
