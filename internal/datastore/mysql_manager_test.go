package datastore

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

const mysqlTestImage = "mysql:8.0.36"

// mysqlSettings returns settings for a MySQL server taken from
// MYSQL_TEST_HOST and friends, or from a throwaway container.
func mysqlSettings(t *testing.T) *conf.DatabaseSettings {
	t.Helper()
	settings := &conf.DatabaseSettings{Type: conf.DatabaseMySQL}

	if host := os.Getenv("MYSQL_TEST_HOST"); host != "" {
		port, err := strconv.Atoi(os.Getenv("MYSQL_TEST_PORT"))
		if err != nil {
			port = 3306
		}
		settings.MySQL = conf.MySQLSettings{
			Host:     host,
			Port:     port,
			Username: os.Getenv("MYSQL_TEST_USER"),
			Password: os.Getenv("MYSQL_TEST_PASSWORD"),
			Database: os.Getenv("MYSQL_TEST_DATABASE"),
		}
		return settings
	}

	if testing.Short() {
		t.Skip("MySQL container tests are skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcmysql.Run(ctx, mysqlTestImage,
		tcmysql.WithDatabase("aplose"),
		tcmysql.WithUsername("aplose"),
		tcmysql.WithPassword("aplose"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	mapped, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings.MySQL = conf.MySQLSettings{
		Host:     host,
		Port:     mapped.Int(),
		Username: "aplose",
		Password: "aplose",
		Database: "aplose",
	}
	return settings
}

func TestMySQLManagerInitialize(t *testing.T) {
	settings := mysqlSettings(t)

	m, err := Open(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, conf.DatabaseMySQL, m.Dialect())
	assert.Contains(t, m.Path(), settings.MySQL.Database)
	for _, table := range []string{"annotation_file_ranges", "annotation_tasks"} {
		assert.True(t, m.DB().Migrator().HasTable(table), "table %s", table)
	}

	require.NoError(t, m.Initialize())
	require.NoError(t, m.DB().Create(&entities.User{Username: "mysql-user", PasswordHash: "x"}).Error)
	err = m.DB().Create(&entities.User{Username: "mysql-user", PasswordHash: "y"}).Error
	assert.Error(t, err, "usernames are unique")
}
