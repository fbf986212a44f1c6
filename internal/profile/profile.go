package profile

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where mystica stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// AI provider configuration
	AIBaseURL string // MYSTICA_AI_BASE_URL (default: https://api.openai.com/v1)
	AIAPIKey  string // MYSTICA_AI_API_KEY
	AIModel   string // MYSTICA_AI_MODEL (default: gpt-4o-mini)

	// Cache tuning
	CacheFastTTL         time.Duration // MYSTICA_CACHE_FAST_TTL (default: 1h)
	CacheSweepInterval   time.Duration // MYSTICA_CACHE_SWEEP_INTERVAL (default: 6h)
	CacheTTLRefreshEvery time.Duration // MYSTICA_CACHE_TTL_REFRESH_EVERY (default: 24h)
	WarmBatchSize        int           // MYSTICA_WARM_BATCH_SIZE (default: 10)
	WarmBatchDelay       time.Duration // MYSTICA_WARM_BATCH_DELAY (default: 5s)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an AI provider API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIAPIKey != ""
}

// Validate normalizes the profile and rejects unusable configurations.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		p.Mode = "dev"
	}

	switch p.Driver {
	case "sqlite", "postgres":
	case "":
		p.Driver = "sqlite"
	default:
		return errors.Errorf("unsupported database driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("DSN is required for the postgres driver")
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return errors.Wrapf(err, "invalid data directory %q", p.Data)
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(p.Data, "mystica_"+p.Mode+".db")
	}

	if p.CacheFastTTL <= 0 {
		p.CacheFastTTL = time.Hour
	}
	if p.CacheSweepInterval <= 0 {
		p.CacheSweepInterval = 6 * time.Hour
	}
	if p.CacheTTLRefreshEvery <= 0 {
		p.CacheTTLRefreshEvery = 24 * time.Hour
	}
	if p.WarmBatchSize <= 0 {
		p.WarmBatchSize = 10
	}
	if p.WarmBatchDelay <= 0 {
		p.WarmBatchDelay = 5 * time.Second
	}

	return nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrap(err, "unable to access data directory")
	}

	return dataDir, nil
}
