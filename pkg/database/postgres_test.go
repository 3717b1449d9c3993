package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/classbook-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "pw", Name: "classbook"})
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=classbook sslmode=disable", dsn)

	dsn = DSN(config.DatabaseConfig{Host: "db", Port: 6543, User: "app", Name: "classbook", SSLMode: "require"})
	assert.Contains(t, dsn, "port=6543")
	assert.Contains(t, dsn, "sslmode=require")
}
