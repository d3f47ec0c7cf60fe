package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

func TestCreateConfigFromViperConfig(t *testing.T) {
	conf := &config.Config{
		Database: config.DatabaseConfig{
			Host:           "db.internal",
			Port:           6432,
			Username:       "ledger",
			Password:       "secret",
			Database:       "credits",
			MaxOpenConns:   40,
			IsolationLevel: IsolationSerializable,
			LockTimeout:    2 * time.Second,
		},
	}

	dbConf := CreateConfigFromViperConfig(conf)

	assert.Equal(t, "db.internal", dbConf.Host)
	assert.Equal(t, 6432, dbConf.Port)
	assert.Equal(t, "credits", dbConf.Database)
	assert.Equal(t, 40, dbConf.MaxOpenConns)
	assert.Equal(t, IsolationSerializable, dbConf.IsolationLevel)
	assert.Equal(t, 2*time.Second, dbConf.LockTimeout)

	// unset values keep the defaults
	defaults := DefaultConfig()
	assert.Equal(t, defaults.SSLMode, dbConf.SSLMode)
	assert.Equal(t, defaults.MaxIdleConns, dbConf.MaxIdleConns)
	assert.Equal(t, defaults.QueryTimeout, dbConf.QueryTimeout)
	assert.Equal(t, defaults.RetryAttempts, dbConf.RetryAttempts)
	assert.NoError(t, dbConf.Validate())
}
