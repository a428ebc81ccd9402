package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "s3cret")
	t.Setenv("PORTAL_DB_PASSWORD", "hunter2")
	t.Setenv("PORTAL_SERVER_PORT", "9090")
	t.Setenv("PORTAL_SECURITY_BCRYPT_COST", "12")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 168*time.Hour, cfg.Outbox.Retention)
	assert.Equal(t, "admin", cfg.RBAC.RoleNames.Admin)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.False(t, cfg.Notify.SMTPEnabled())

	_, ok := cfg.RBAC.AdminRequest()
	assert.False(t, ok)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORTAL_JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverMemory},
			JWT:      JWTConfig{Secret: "x"},
			RBAC:     RBACConfig{RoleNames: model.DefaultRoleNames()},
		}
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RBAC.RoleNames.Customer = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Security.BcryptCost = 40
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Security.BcryptCost = 12
	assert.NoError(t, cfg.Validate())
}

func TestApplySecretsKeepsFileValuesWhenUnset(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Password = "from-file"
	cfg.applySecrets(Secrets{JWTSecret: "env", AdminPassword: "pw"})

	assert.Equal(t, "from-file", cfg.Database.Password)
	assert.Equal(t, "env", cfg.JWT.Secret)
	assert.Equal(t, "pw", cfg.RBAC.Admin.Password)
}

func TestAdminRequest(t *testing.T) {
	var c RBACConfig
	c.Admin.Phone = "+10000000000"
	c.Admin.Password = "changeme!"
	c.Admin.Name = "Administrator"

	req, ok := c.AdminRequest()
	require.True(t, ok)
	assert.Equal(t, "+10000000000", req.Phone)
	assert.Equal(t, "changeme!", req.Password)
}

func TestToWorkerConfig(t *testing.T) {
	oc := OutboxConfig{BatchSize: 10, RetryAttempts: 4, RetryDelay: time.Second}
	wc := oc.ToWorkerConfig("portal.notifications")
	assert.Equal(t, "portal.notifications", wc.Channel)
	assert.Equal(t, 4, wc.MaxAttempts)
	assert.Equal(t, 10, wc.BatchSize)
}
