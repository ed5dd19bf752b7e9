package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/pkg/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "registrar",
		Password: "p@ss word/#1",
		Name:     "school_records",
		SSLMode:  "require",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word/#1", password)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/school_records", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}
