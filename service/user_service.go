package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/cydxin/roomchat-sdk/models"
)

type UserService struct {
	*Service
	userDao      *models.UserDAO
	tokenService *TokenService
}

func NewUserService(s *Service, tokenService *TokenService) *UserService {
	log.Println("NewUserService")
	return &UserService{
		Service:      s,
		userDao:      models.NewUserDAO(s.DB),
		tokenService: tokenService,
	}
}

// --- types ---

type UserDTO struct {
	ID        uint64    `json:"id"`
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RegisterReq struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type LoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"` // 记住我：会话 TTL 30 天
}

type LoginResp struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

func toUserDTO(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		UID:       u.UID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func normalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		s = strings.ToLower(s)
	}
	return s
}

// Register 注册（bcrypt 存密码）
func (s *UserService) Register(req RegisterReq) (*UserDTO, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("输入账号")
	}
	password := strings.TrimSpace(req.Password)
	if len(password) < 6 {
		return nil, fmt.Errorf("密码至少 6 位")
	}

	exists, err := s.userDao.ExistsByUsername(username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("用户名已被占用")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		UID:       uuid.New().String(),
		Username:  username,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Password:  string(hash),
		Email:     normalizeEmail(req.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Nickname == "" {
		user.Nickname = user.Username
	}

	if err := s.userDao.Create(user); err != nil {
		return nil, err
	}
	return toUserDTO(user), nil
}

// Login 登录并建立服务端会话，返回 token + 用户信息
func (s *UserService) Login(ctx context.Context, req LoginReq) (*LoginResp, error) {
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		return nil, fmt.Errorf("需要账户和密码")
	}

	u, err := s.userDao.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("账户或密码无效")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("账户或密码无效")
	}

	token, err := s.tokenService.IssueToken(ctx, u.ID, req.Remember)
	if err != nil {
		return nil, err
	}
	return &LoginResp{Token: token, User: *toUserDTO(u)}, nil
}

// Logout 服务端注销当前会话（删除会话 key，token 立即失效）
func (s *UserService) Logout(ctx context.Context, token string) error {
	return s.tokenService.RevokeToken(ctx, token)
}

// GetUser 获取用户信息（脱敏）
func (s *UserService) GetUser(userID uint64) (*UserDTO, error) {
	u, err := s.userDao.FindByID(userID)
	if err != nil {
		return nil, err
	}
	return toUserDTO(u), nil
}
