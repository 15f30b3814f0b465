package target

import (
	"net"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/mangoGood/mysql-replicate/internal/config"
)

func TestTranslateConnErrorAccessDenied(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 3306, Database: "shop"}
	err := translateConnError(cfg, &mysql.MySQLError{Number: 1045, Message: "Access denied"})
	require.ErrorContains(t, err, "incorrect username or password")
}

func TestTranslateConnErrorUnknownDatabase(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 3306, Database: "shop"}
	err := translateConnError(cfg, &mysql.MySQLError{Number: 1049, Message: "Unknown database"})
	require.ErrorContains(t, err, `database "shop"`)
}

func TestTranslateConnErrorDNSNotFound(t *testing.T) {
	cfg := config.DBConfig{Host: "nosuchhost", Port: 3306}
	err := translateConnError(cfg, &net.DNSError{Err: "no such host", Name: "nosuchhost", IsNotFound: true})
	require.ErrorContains(t, err, `"nosuchhost" cannot be found`)
}

func TestTranslateConnErrorPassesThroughUnknownCauses(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 3306}
	other := &mysql.MySQLError{Number: 1064, Message: "syntax error"}
	err := translateConnError(cfg, other)
	require.Equal(t, other, err)
}
