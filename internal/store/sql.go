package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/rbacauth/internal/dbx"
	"github.com/example/rbacauth/internal/models"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQL implements Store over database/sql. Queries are written with "?"
// placeholders and rebound to "$n" for PostgreSQL.
type SQL struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQL) Close() error                   { return s.db.Close() }

func (s *SQL) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func dbErr(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrConflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

const userColumns = `id, uid, email, username, password_hash, active, suspend, role_id,
google_uid, profile_pic, theme, first_login, google_auth, subscribed,
time_added, last_login_at, created_at, updated_at`

func (s *SQL) CreateUser(ctx context.Context, u *models.User) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			u.ID, u.UID, u.Email, u.Username, u.PasswordHash, u.Access.Active, u.Access.Suspend, u.RoleID,
			u.GoogleUID, u.ProfilePic, u.Theme, u.FirstLogin, u.GoogleAuth, u.Subscribed,
			millis(u.TimeAdded), millis(u.LastLoginAt), millis(u.CreatedAt), millis(u.UpdatedAt))
		if err != nil {
			return dbErr("insert user", err)
		}
		return s.saveVisitors(ctx, tx, u)
	})
}

func (s *SQL) UpdateUser(ctx context.Context, u *models.User) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE users SET uid = ?, email = ?, username = ?, password_hash = ?,
active = ?, suspend = ?, role_id = ?, google_uid = ?, profile_pic = ?, theme = ?,
first_login = ?, google_auth = ?, subscribed = ?, time_added = ?, last_login_at = ?, updated_at = ?
WHERE id = ?`),
			u.UID, u.Email, u.Username, u.PasswordHash,
			u.Access.Active, u.Access.Suspend, u.RoleID, u.GoogleUID, u.ProfilePic, u.Theme,
			u.FirstLogin, u.GoogleAuth, u.Subscribed, millis(u.TimeAdded), millis(u.LastLoginAt), millis(u.UpdatedAt),
			u.ID)
		if err != nil {
			return dbErr("update user", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return s.saveVisitors(ctx, tx, u)
	})
}

func (s *SQL) saveVisitors(ctx context.Context, tx dbx.DBTX, u *models.User) error {
	for i, v := range u.Visitors {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO user_visitors (user_id, visitor_id, position)
VALUES (?, ?, ?) ON CONFLICT (user_id, visitor_id) DO NOTHING`), u.ID, v, i)
		if err != nil {
			return dbErr("insert user visitor", err)
		}
	}
	return nil
}

func (s *SQL) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *SQL) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *SQL) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	return s.getUser(ctx, "uid", uid)
}

func (s *SQL) getUser(ctx context.Context, column, value string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`), value)
	var (
		u                                       models.User
		timeAdded, lastLogin, created, updated int64
	)
	err := row.Scan(&u.ID, &u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Access.Active, &u.Access.Suspend, &u.RoleID,
		&u.GoogleUID, &u.ProfilePic, &u.Theme, &u.FirstLogin, &u.GoogleAuth, &u.Subscribed,
		&timeAdded, &lastLogin, &created, &updated)
	if err != nil {
		return nil, dbErr("select user", err)
	}
	u.TimeAdded, u.LastLoginAt = fromMillis(timeAdded), fromMillis(lastLogin)
	u.CreatedAt, u.UpdatedAt = fromMillis(created), fromMillis(updated)

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT visitor_id FROM user_visitors WHERE user_id = ? ORDER BY position`), u.ID)
	if err != nil {
		return nil, dbErr("select user visitors", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, dbErr("scan user visitor", err)
		}
		u.Visitors = append(u.Visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("select user visitors", err)
	}
	return &u, nil
}

func (s *SQL) AddRefreshToken(ctx context.Context, userID string, t models.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO refresh_tokens (user_id, token, created_at, expires_at) VALUES (?, ?, ?, ?)`),
		userID, t.Token, millis(t.CreatedAt), millis(t.ExpiresAt))
	if err != nil {
		return dbErr("insert refresh token", err)
	}
	return nil
}

func (s *SQL) FindRefreshToken(ctx context.Context, userID, token string) (*models.RefreshToken, error) {
	var (
		t                  models.RefreshToken
		created, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT token, created_at, expires_at FROM refresh_tokens WHERE user_id = ? AND token = ?`),
		userID, token).Scan(&t.Token, &created, &expiresAt)
	if err != nil {
		return nil, dbErr("select refresh token", err)
	}
	t.CreatedAt, t.ExpiresAt = fromMillis(created), fromMillis(expiresAt)
	return &t, nil
}

func (s *SQL) RemoveRefreshToken(ctx context.Context, userID, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM refresh_tokens WHERE user_id = ? AND token = ?`), userID, token)
	if err != nil {
		return false, dbErr("delete refresh token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr("delete refresh token", err)
	}
	return n > 0, nil
}

func (s *SQL) RotateRefreshToken(ctx context.Context, userID, old string, next models.RefreshToken, now time.Time) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM refresh_tokens WHERE user_id = ? AND token = ? AND expires_at >= ?`),
			userID, old, millis(now))
		if err != nil {
			return dbErr("rotate refresh token", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return dbErr("rotate refresh token", err)
		}
		if n != 1 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO refresh_tokens (user_id, token, created_at, expires_at) VALUES (?, ?, ?, ?)`),
			userID, next.Token, millis(next.CreatedAt), millis(next.ExpiresAt))
		if err != nil {
			return dbErr("rotate refresh token", err)
		}
		return nil
	})
}

func (s *SQL) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM refresh_tokens WHERE expires_at < ?`), millis(now))
	if err != nil {
		return 0, dbErr("sweep refresh tokens", err)
	}
	return res.RowsAffected()
}

const challengeColumns = `id, email, code, username, password_hash, visitor_id, purpose, attempts, expires_at, verified, created_at`

func (s *SQL) ReplaceChallenge(ctx context.Context, c *models.Challenge) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM otp_challenges WHERE email = ?`), c.Email); err != nil {
			return dbErr("delete prior challenges", err)
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO otp_challenges (`+challengeColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			c.ID, c.Email, c.Code, c.Username, c.PasswordHash, c.VisitorID, string(c.Purpose), c.Attempts,
			millis(c.ExpiresAt), c.Verified, millis(c.CreatedAt))
		if err != nil {
			return dbErr("insert challenge", err)
		}
		return nil
	})
}

func (s *SQL) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var (
		c                  models.Challenge
		purpose            string
		expiresAt, created int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT `+challengeColumns+` FROM otp_challenges WHERE id = ?`), id).
		Scan(&c.ID, &c.Email, &c.Code, &c.Username, &c.PasswordHash, &c.VisitorID, &purpose, &c.Attempts,
			&expiresAt, &c.Verified, &created)
	if err != nil {
		return nil, dbErr("select challenge", err)
	}
	c.Purpose = models.Purpose(purpose)
	c.ExpiresAt, c.CreatedAt = fromMillis(expiresAt), fromMillis(created)
	return &c, nil
}

func (s *SQL) IncrementChallengeAttempts(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`), id).Scan(&n)
	if err != nil {
		return 0, dbErr("increment attempts", err)
	}
	return n, nil
}

func (s *SQL) ConsumeChallenge(ctx context.Context, id string) error {
	return s.deleteOne(ctx, "consume challenge", `DELETE FROM otp_challenges WHERE id = ?`, id)
}

func (s *SQL) DeleteChallenge(ctx context.Context, email, id string) error {
	return s.deleteOne(ctx, "delete challenge", `DELETE FROM otp_challenges WHERE id = ? AND email = ?`, id, email)
}

func (s *SQL) deleteOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return dbErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM otp_challenges WHERE expires_at < ?`), millis(now))
	if err != nil {
		return 0, dbErr("sweep challenges", err)
	}
	return res.RowsAffected()
}

func (s *SQL) CreateRole(ctx context.Context, r *models.Role) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO roles (id, uid, name, slug) VALUES (?, ?, ?, ?)`), r.ID, r.UID, r.Name, r.Slug)
		if err != nil {
			return dbErr("insert role", err)
		}
		for i, p := range r.Permissions {
			_, err := tx.ExecContext(ctx, s.q(`INSERT INTO role_permissions
(role_id, position, module_id, can_get, can_post, can_put, can_delete) VALUES (?, ?, ?, ?, ?, ?, ?)`),
				r.ID, i, p.ModuleID, p.Actions.Get, p.Actions.Post, p.Actions.Put, p.Actions.Delete)
			if err != nil {
				return dbErr("insert role permission", err)
			}
		}
		return nil
	})
}

func (s *SQL) GetRole(ctx context.Context, id string) (*models.Role, error) {
	var r models.Role
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, uid, name, slug FROM roles WHERE id = ?`), id).
		Scan(&r.ID, &r.UID, &r.Name, &r.Slug)
	if err != nil {
		return nil, dbErr("select role", err)
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT module_id, can_get, can_post, can_put, can_delete
FROM role_permissions WHERE role_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, dbErr("select role permissions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ModuleID, &p.Actions.Get, &p.Actions.Post, &p.Actions.Put, &p.Actions.Delete); err != nil {
			return nil, dbErr("scan role permission", err)
		}
		r.Permissions = append(r.Permissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("select role permissions", err)
	}
	return &r, nil
}

func (s *SQL) CreateModule(ctx context.Context, m *models.Module) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO modules (id, uid, name, slug, active, maintenance) VALUES (?, ?, ?, ?, ?, ?)`),
		m.ID, m.UID, m.Name, m.Slug, m.Status.Active, m.Status.Maintenance)
	if err != nil {
		return dbErr("insert module", err)
	}
	return nil
}

func (s *SQL) GetModule(ctx context.Context, id string) (*models.Module, error) {
	var m models.Module
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, uid, name, slug, active, maintenance FROM modules WHERE id = ?`), id).
		Scan(&m.ID, &m.UID, &m.Name, &m.Slug, &m.Status.Active, &m.Status.Maintenance)
	if err != nil {
		return nil, dbErr("select module", err)
	}
	return &m, nil
}

func (s *SQL) GetDefault(ctx context.Context, category string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT ref_id FROM defaults WHERE category = ?`), category).Scan(&id)
	if err != nil {
		return "", dbErr("select default", err)
	}
	return id, nil
}

func (s *SQL) SetDefault(ctx context.Context, category, refID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO defaults (category, ref_id) VALUES (?, ?)
ON CONFLICT (category) DO UPDATE SET ref_id = excluded.ref_id`), category, refID)
	if err != nil {
		return dbErr("upsert default", err)
	}
	return nil
}

const visitorColumns = `id, fingerprint, device, impression, first_seen, last_seen`

func scanVisitor(row *sql.Row) (*models.Visitor, error) {
	var (
		v               models.Visitor
		first, lastSeen int64
	)
	if err := row.Scan(&v.ID, &v.Fingerprint, &v.Device, &v.Impression, &first, &lastSeen); err != nil {
		return nil, err
	}
	v.FirstSeen, v.LastSeen = fromMillis(first), fromMillis(lastSeen)
	return &v, nil
}

func (s *SQL) GetVisitor(ctx context.Context, id string) (*models.Visitor, error) {
	v, err := scanVisitor(s.db.QueryRowContext(ctx, s.q(`SELECT `+visitorColumns+` FROM visitors WHERE id = ?`), id))
	if err != nil {
		return nil, dbErr("select visitor", err)
	}
	return v, nil
}

func (s *SQL) TouchVisitor(ctx context.Context, fingerprint, device string, now time.Time) (*models.Visitor, error) {
	var out *models.Visitor
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO visitors (`+visitorColumns+`) VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT (fingerprint, device) DO UPDATE SET impression = visitors.impression + 1, last_seen = excluded.last_seen`),
			uuid.NewString(), fingerprint, device, millis(now), millis(now))
		if err != nil {
			return dbErr("upsert visitor", err)
		}
		v, err := scanVisitor(tx.QueryRowContext(ctx, s.q(`SELECT `+visitorColumns+` FROM visitors WHERE fingerprint = ? AND device = ?`),
			fingerprint, device))
		if err != nil {
			return dbErr("select visitor", err)
		}
		out = v
		return nil
	})
	return out, err
}
