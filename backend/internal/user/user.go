package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleTeacher, RoleFreelancer, RoleAdmin:
		return r, true
	case "":
		return RoleStudent, true
	}
	return "", false
}

type User struct {
	ID           string
	Username     string
	Role         Role
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var ErrUserNotFound = errors.New("user not found")
var ErrUsernameTaken = errors.New("username already taken")
var ErrDeadlineExceeded = errors.New("deadline exceeded")

type Repository interface {
	CreateUser(ctx context.Context, username string, role Role, passwordHash []byte) (string, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type mysqlRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) Repository {
	return &mysqlRepository{db: db}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 3*time.Second)
}

func (r *mysqlRepository) CreateUser(ctx context.Context, username string, role Role, passwordHash []byte) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	const q = `
	INSERT INTO users (id, username, role, password_hash) VALUES (?, ?, ?, ?);
	`
	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, q, id, username, string(role), passwordHash); err != nil {
		// 1062 = duplicate key
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return "", ErrUsernameTaken
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrDeadlineExceeded
		}
		return "", err
	}
	return id, nil
}

func (r *mysqlRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	const q = `
	SELECT id, username, role, password_hash FROM users WHERE username = ?;
	`
	var u User
	var role string
	err := r.db.QueryRowContext(ctx, q, username).Scan(&u.ID, &u.Username, &role, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}
