package conn

import (
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	_defaultHost    = "localhost"
	_defaultPort    = 5432
	_defaultSSLMode = "disable"
)

// Option describes one PostgreSQL target. DSN, when set, wins over the
// discrete fields.
type Option struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Params   map[string]string
	Config   *gorm.Config
}

// Postgres wraps a gorm connection pool.
type Postgres struct {
	db *gorm.DB
}

// Open connects to PostgreSQL and optionally migrates the given models.
func Open(opt Option, models ...any) (*Postgres, error) {
	cfg := opt.Config
	if cfg == nil {
		cfg = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(opt.dsn()), cfg)
	if err != nil {
		return nil, err
	}

	if len(models) != 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, err
		}
	}

	return &Postgres{db: db}, nil
}

// DB returns the underlying gorm handle.
func (p *Postgres) DB() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.db
}

// Close drains the underlying pool.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt Option) dsn() string {
	if opt.DSN != "" {
		return opt.DSN
	}

	host := opt.Host
	if host == "" {
		host = _defaultHost
	}
	port := opt.Port
	if port == 0 {
		port = _defaultPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = _defaultSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	switch {
	case opt.User != "" && opt.Password != "":
		u.User = url.UserPassword(opt.User, opt.Password)
	case opt.User != "":
		u.User = url.User(opt.User)
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key != "" {
			query.Set(key, value)
		}
	}
	u.RawQuery = query.Encode()

	return u.String()
}
