package ch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

// defaultClient is the default implementation of the Client interface
type defaultClient struct {
	config *Config
	logger logger.Logger

	// clickhouse connection (shared by Writer and Query)
	conn driver.Conn

	// writer instance (lazy initialization)
	writer     Writer
	writerOnce sync.Once

	closed bool
	mu     sync.RWMutex
}

// NewClient connects to ClickHouse and pings it
func NewClient(config *Config, log logger.Logger) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.MergeDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: config.Hosts,
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		DialTimeout: config.DialTimeout,
		Debug:       config.Debug,
		Settings:    config.Settings,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, ErrConnection(err)
	}

	log.Info("clickhouse client initialized",
		zap.Strings("hosts", config.Hosts),
		zap.String("database", config.Database),
	)
	return &defaultClient{config: config, logger: log, conn: conn}, nil
}

// Writer returns the batch writer. It is created on first use; the caller
// must Start it. Returns ErrWriterDisabled if Config.Writer is not set.
func (c *defaultClient) Writer() (Writer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.config.Writer == nil {
		return nil, ErrWriterDisabled
	}

	c.writerOnce.Do(func() {
		c.writer = NewWriter(c.logger, c.config.Writer, &connInserter{conn: c.conn})
	})
	return c.writer, nil
}

func (c *defaultClient) Exec(ctx context.Context, query string, args ...any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if err := c.conn.Exec(ctx, query, args...); err != nil {
		c.logger.Error("exec failed", zap.String("query", query), zap.Error(err))
		return err
	}
	return nil
}

func (c *defaultClient) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		c.logger.Error("query failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func (c *defaultClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.logger.Info("clickhouse client shutting down")
	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			c.logger.Error("failed to close writer", zap.Error(err))
		}
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Error("failed to close clickhouse connection", zap.Error(err))
		return err
	}
	c.logger.Info("clickhouse client shutdown complete")
	return nil
}

// connInserter inserts batches through a native connection
type connInserter struct {
	conn driver.Conn
}

func (i *connInserter) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	batch, err := i.conn.PrepareBatch(ctx, insertQuery(table, columns))
	if err != nil {
		return ErrInsert(table, err)
	}
	for _, values := range rows {
		if err := batch.Append(values...); err != nil {
			_ = batch.Abort()
			return ErrInsert(table, err)
		}
	}
	if err := batch.Send(); err != nil {
		return ErrInsert(table, err)
	}
	return nil
}

func insertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "`" + c + "`"
	}
	return fmt.Sprintf("INSERT INTO `%s` (%s)", table, strings.Join(quoted, ", "))
}
