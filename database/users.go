package database

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/CrowderSoup/scheduler/validation"
)

// ErrInvalidCredentials is returned by Authenticate when the user id or
// password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService handles user rows. Passwords are stored as given.
type UserService struct {
	db *sqlx.DB
}

func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{db: db}
}

func getUser(ctx context.Context, q sqlx.QueryerContext, userID string) (User, error) {
	var user User
	err := sqlx.GetContext(ctx, q, &user, "SELECT user_id, user_name, password FROM users WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		exists, err := userExists(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		if exists {
			return validation.FieldErrors{"userId": {"user with this userId already exists."}}
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO users (user_id, user_name, password) VALUES (?, ?, ?)",
			in.UserID, in.UserName, in.Password)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return User{UserID: in.UserID, UserName: in.UserName, Password: in.Password}, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (User, error) {
	return getUser(ctx, s.db, userID)
}

func (s *UserService) List(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.SelectContext(ctx, &users, "SELECT user_id, user_name, password FROM users ORDER BY user_id"); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, userID string, in UserInput) (User, error) {
	return s.Modify(ctx, userID, func(target *UserInput) error {
		*target = in
		return nil
	})
}

// Modify loads user userID, lets apply change its fields and stores the
// result. The user id itself is never changed.
func (s *UserService) Modify(ctx context.Context, userID string, apply func(*UserInput) error) (User, error) {
	var updated User
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		in := current.Input()
		if err := apply(&in); err != nil {
			return err
		}
		in.UserID = current.UserID
		if err := in.Validate(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE users SET user_name = ?, password = ? WHERE user_id = ?",
			in.UserName, in.Password, userID)
		if err != nil {
			return fmt.Errorf("failed to update user %s: %w", userID, err)
		}
		updated = User{UserID: userID, UserName: in.UserName, Password: in.Password}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

// Delete removes a user. Tasks, notes and history rows owned by the user are
// kept with their owner cleared.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// Authenticate returns the user when password matches the stored one.
func (s *UserService) Authenticate(ctx context.Context, userID, password string) (User, error) {
	user, err := getUser(ctx, s.db, userID)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
