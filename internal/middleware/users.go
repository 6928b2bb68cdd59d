package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"creativemind-api/internal/shared"
	"creativemind-api/internal/users"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UserManager resolves bearer tokens into user metadata, with a short-TTL
// redis cache in front of the read replica. Only identity fields are
// cached; the credit balance is always read fresh by the ledger.
type UserManager struct {
	redis *redis.Client
	rdb   *sql.DB
	ids   *users.Service
	log   *zap.SugaredLogger
}

func NewUserManager(redisClient *redis.Client, rdb *sql.DB, ids *users.Service, log *zap.SugaredLogger) *UserManager {
	return &UserManager{redis: redisClient, rdb: rdb, ids: ids, log: log}
}

func (u *UserManager) getUserMetadataFromToken(ctx context.Context, token string) (*shared.UserMetadata, error) {
	userID, err := u.ids.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	var userMetadata shared.UserMetadata

	userInfoCacheKey := fmt.Sprintf("v1:user:id:%d", userID)
	userInfoCache, err := u.redis.Get(ctx, userInfoCacheKey).Result()
	switch err {
	case nil:
		err = json.Unmarshal([]byte(userInfoCache), &userMetadata)
		if err == nil {
			return &userMetadata, nil
		}
		u.log.Errorw("Error unmarshalling user info cache", "error", err)
		fallthrough
	default:
		u.log.Debugw("User cache miss", "key", userInfoCacheKey)

		err = u.rdb.QueryRowContext(ctx, `
		SELECT id, email, name, username
		FROM user
		WHERE id = ?
		`, userID).Scan(
			&userMetadata.UserID,
			&userMetadata.Email,
			&userMetadata.Name,
			&userMetadata.Username,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				u.log.Warnw("Token for unknown user", "user_id", userID)
				return nil, shared.ErrInvalidToken
			}
			u.log.Errorw("Database error during token validation", "error", err)
			return nil, shared.ErrInvalidToken
		}
		go func() {
			userInfoCache, err := json.Marshal(userMetadata)
			if err != nil {
				u.log.Errorw("Error marshalling user info", "error", err)
				return
			}
			u.redis.Set(context.Background(), userInfoCacheKey, userInfoCache, shared.UserInfoCacheTTL)
		}()
		return &userMetadata, nil
	}
}
