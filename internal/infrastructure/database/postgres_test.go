package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5432, User: "payments", Password: "secret", DBName: "payments_db", SSLMode: "disable"}
	assert.Equal(t, "postgres://payments:secret@db:5432/payments_db?sslmode=disable", cfg.MigrationURL())
}

func TestMigrationURL_EscapesCredentials(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 6543, User: "app:user", Password: "p@ss:w/rd?#", DBName: "payments_db", SSLMode: "require"}

	u, err := url.Parse(cfg.MigrationURL())
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "app:user", u.User.Username())
	password, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss:w/rd?#", password)
	assert.Equal(t, "db", u.Hostname())
	assert.Equal(t, "6543", u.Port())
	assert.Equal(t, "/payments_db", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}
