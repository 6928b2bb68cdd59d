package users

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"creativemind-api/internal/shared"

	"golang.org/x/crypto/bcrypt"
)

// Profile is the public projection of a user row.
type Profile struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Bio             string `json:"bio"`
	ProfileImage    string `json:"profileImage,omitempty"`
	JoinDate        string `json:"joinDate"`
	CreditBalance   int64  `json:"creditBalance"`
	ImagesGenerated int64  `json:"imagesGenerated"`
	APICalls        int64  `json:"apiCalls"`
}

func (s *Service) GetProfile(ctx context.Context, userID uint64) (*Profile, error) {
	var p Profile
	var image sql.NullString
	var joined time.Time
	err := s.RDB.QueryRowContext(ctx, `
		SELECT name, email, username, bio, profile_image, credit_balance, images_generated, api_calls, created_at
		FROM user WHERE id = ?
	`, userID).Scan(&p.FullName, &p.Email, &p.Username, &p.Bio, &image, &p.CreditBalance, &p.ImagesGenerated, &p.APICalls, &joined)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed loading profile: %w", err)
	}
	if image.Valid {
		p.ProfileImage = image.String
	}
	p.JoinDate = joined.Format("January 2, 2006")
	return &p, nil
}

type UpdateProfileRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint64, req UpdateProfileRequest) (*Profile, error) {
	if req.Username != "" {
		if !usernameRe.MatchString(req.Username) {
			return nil, shared.InvalidInput("username can only contain letters, numbers and underscores")
		}
		if len(req.Username) < 3 || len(req.Username) > 30 {
			return nil, shared.InvalidInput("username must be between 3 and 30 characters")
		}
		var taken int
		err := s.RDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM user WHERE username = ? AND id != ?", req.Username, userID).Scan(&taken)
		if err != nil {
			return nil, fmt.Errorf("failed checking username: %w", err)
		}
		if taken > 0 {
			return nil, errUsernameTaken
		}
	}

	_, err := s.WDB.ExecContext(ctx, `
		UPDATE user
		SET name = COALESCE(NULLIF(?, ''), name),
		    username = COALESCE(NULLIF(?, ''), username),
		    bio = ?
		WHERE id = ?
	`, req.FullName, req.Username, req.Bio, userID)
	if err != nil {
		return nil, fmt.Errorf("failed updating profile: %w", err)
	}

	return s.GetProfile(ctx, userID)
}

// SetProfileImage stores the uploaded image as an embeddable data URL.
// The caller has already staged and released the upload bytes.
func (s *Service) SetProfileImage(ctx context.Context, userID uint64, data []byte, mime string) (*Profile, error) {
	if len(data) == 0 {
		return nil, shared.InvalidInput("no file uploaded")
	}
	if len(data) > shared.MaxUploadBytes {
		return nil, shared.InvalidInput("file size too large, maximum size is 5MB")
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, shared.InvalidInput("not an image, please upload an image")
	}

	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	res, err := s.WDB.ExecContext(ctx, "UPDATE user SET profile_image = ?, profile_image_type = ? WHERE id = ?", dataURL, mime, userID)
	if err != nil {
		return nil, fmt.Errorf("failed storing profile image: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return nil, shared.ErrNotFound
	}

	return s.GetProfile(ctx, userID)
}

func (s *Service) UpdatePassword(ctx context.Context, userID uint64, current, next string) error {
	if current == "" || next == "" {
		return shared.InvalidInput("please provide both current and new password")
	}
	if len(next) < 8 {
		return shared.InvalidInput("new password must be at least 8 characters long")
	}

	var hash string
	err := s.RDB.QueryRowContext(ctx, "SELECT password_hash FROM user WHERE id = ?", userID).Scan(&hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return shared.ErrNotFound
		}
		return fmt.Errorf("failed loading user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)) != nil {
		return shared.InvalidInput("current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed hashing password: %w", err)
	}
	if _, err := s.WDB.ExecContext(ctx, "UPDATE user SET password_hash = ? WHERE id = ?", string(newHash), userID); err != nil {
		return fmt.Errorf("failed updating password: %w", err)
	}
	return nil
}
