package roomchat_sdk

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/cydxin/roomchat-sdk/validate"
)

type ServiceConfig struct {
	Debug bool
}

type Config struct {
	DB          *gorm.DB
	RDB         *redis.Client
	TablePrefix string
	Service     ServiceConfig

	// JWTSecret 访问令牌与邀请令牌的签名密钥
	JWTSecret string

	// MessageOptions 消息校验规则（nil 用默认值）
	MessageOptions *validate.MessageOptions
}

type Option func(*Config)

func WithDB(db *gorm.DB) Option {
	return func(c *Config) {
		c.DB = db
	}
}

func WithTablePrefix(prefix string) Option {
	return func(c *Config) {
		c.TablePrefix = prefix
	}
}

func WithRDB(RDB *redis.Client) Option {
	return func(c *Config) {
		c.RDB = RDB
	}
}

func WithJWTSecret(secret string) Option {
	return func(c *Config) {
		c.JWTSecret = secret
	}
}

// WithMessageOptions 自定义消息校验规则（长度上限、违禁词等）。
func WithMessageOptions(opts *validate.MessageOptions) Option {
	return func(c *Config) {
		c.MessageOptions = opts
	}
}

// WithBlockedWords 只覆盖违禁词表，其余规则用默认值。
func WithBlockedWords(words ...string) Option {
	return func(c *Config) {
		if c.MessageOptions == nil {
			c.MessageOptions = &validate.MessageOptions{}
		}
		c.MessageOptions.BlockedWords = words
	}
}

func WithServiceDebug(debug bool) Option {
	return func(c *Config) {
		c.Service.Debug = debug
	}
}
