package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// CreateUser inserts u (password already hashed) and sets its ID.
func (r *UserRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var gender any
	if u.Gender != nil {
		gender = string(*u.Gender)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, gender) VALUES (?,?,?,?)",
		u.Email, u.PasswordHash, u.Role, gender)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.IsActive = true
	return nil
}

// GetUserByEmail fetches a user by normalized email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,gender,is_active,created_at FROM users WHERE email=? LIMIT 1",
		email))
	if err != nil {
		return nil, notFound("get user by email", err)
	}
	return u, nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,gender,is_active,created_at FROM users WHERE id=? LIMIT 1",
		id))
	if err != nil {
		return nil, notFound(fmt.Sprintf("get user %d", id), err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u      model.User
		gender sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &gender, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	if gender.Valid {
		g := model.Gender(gender.String)
		u.Gender = &g
	}
	return &u, nil
}
