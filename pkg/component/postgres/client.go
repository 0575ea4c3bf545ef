// Package postgres 提供文件注册表使用的 gorm PostgreSQL 客户端。
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	postgresopts "github.com/kart-io/knowledge-x/pkg/options/postgres"
)

// Client 包装 gorm.DB。
type Client struct {
	db   *gorm.DB
	opts *postgresopts.Options
}

// NewWithContext 建连并配置连接池，连上后 ping 一次确认可用。
// ctx 控制建连阶段的超时和取消。
func NewWithContext(ctx context.Context, opts *postgresopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("postgres options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid postgres options: %v", errs)
	}

	db, err := gorm.Open(postgresdriver.Open(BuildDSN(opts)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)

	client := &Client{db: db, opts: opts}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return client, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

// DB 返回底层 gorm.DB，store 层在其上构建查询。
func (c *Client) DB() *gorm.DB {
	return c.db
}

func (c *Client) sqlDB() (*sql.DB, error) {
	if c.db == nil {
		return nil, fmt.Errorf("gorm.DB is nil")
	}
	return c.db.DB()
}

// Ping 校验数据库连通性，固定 5 秒超时。
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.sqlDB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close 关闭连接池。
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.sqlDB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB for closing: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close postgres connection: %w", err)
	}
	return nil
}
