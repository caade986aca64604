package notifications

import (
	"fmt"
	"time"

	"github.com/0xPuncker/andon-notifier/pkg/config"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const departmentsKey = "departments"

// Directory resolves department recipients, re-reading the departments file at most
// once per TTL so edits are picked up without a restart.
type Directory struct {
	cache  *cache.Cache
	logger *logrus.Logger
	load   func() (*config.Config, error)
}

func NewDirectory(path string, ttl time.Duration, logger *logrus.Logger) *Directory {
	return newDirectory(func() (*config.Config, error) {
		return config.LoadConfig(path)
	}, ttl, logger)
}

// NewStaticDirectory serves a fixed department list.
func NewStaticDirectory(cfg *config.Config, logger *logrus.Logger) *Directory {
	return newDirectory(func() (*config.Config, error) {
		return cfg, nil
	}, cache.NoExpiration, logger)
}

func newDirectory(load func() (*config.Config, error), ttl time.Duration, logger *logrus.Logger) *Directory {
	cleanup := 2 * ttl
	if ttl <= 0 {
		cleanup = 0
	}
	return &Directory{
		cache:  cache.New(ttl, cleanup),
		logger: logger,
		load:   load,
	}
}

func (d *Directory) Departments() ([]config.Department, error) {
	if cached, found := d.cache.Get(departmentsKey); found {
		return cached.([]config.Department), nil
	}

	cfg, err := d.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load departments: %w", err)
	}

	d.cache.Set(departmentsKey, cfg.Departments, cache.DefaultExpiration)
	d.logger.WithField("departments", len(cfg.Departments)).Debug("Loaded department recipients")
	return cfg.Departments, nil
}

// Invalidate forces the next lookup to reload the departments file.
func (d *Directory) Invalidate() {
	d.cache.Delete(departmentsKey)
}
