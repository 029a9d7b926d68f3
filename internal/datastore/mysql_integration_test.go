//go:build integration

package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/conf"
)

// Run with: go test -tags integration ./internal/datastore/
func TestMySQLRoundTrip(t *testing.T) {
	ctx := t.Context()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("fencewatch"),
		tcmysql.WithUsername("fencewatch"),
		tcmysql.WithPassword("fencewatch"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	s, err := Open(&conf.PersistenceSettings{
		Backend: conf.BackendMySQL,
		MySQL: conf.MySQLSettings{
			Host:     host,
			Port:     port.Int(),
			Username: "fencewatch",
			Password: "fencewatch",
			Database: "fencewatch",
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fences, err := s.Fences().Save(ctx, bed.Name, bed)
	require.NoError(t, err)
	assert.Equal(t, bed, fences[bed.Name])

	night := alert.Alert{Name: "night", Type: alert.TypeLocal, Recipient: "en", ContentTemplate: "check [fence]"}
	_, err = s.Alerts().Save(ctx, night.Name, night)
	require.NoError(t, err)

	reopened, err := OpenMySQL(&conf.MySQLSettings{
		Host: host, Port: port.Int(), Username: "fencewatch", Password: "fencewatch", Database: "fencewatch",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	alerts, err := reopened.Alerts().LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]alert.Alert{"night": night}, alerts)

	fences, err = reopened.Fences().Remove(ctx, bed.Name)
	require.NoError(t, err)
	assert.Empty(t, fences)
}
