package mysqlsrc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCreateStatementStripsQualifiedIdent(t *testing.T) {
	in := "CREATE TABLE `shop`.`users` (\n  `id` int NOT NULL\n) ENGINE=InnoDB"
	out := NormalizeCreateStatement(in)
	require.Equal(t, "CREATE TABLE `users` (\n  `id` int NOT NULL\n) ENGINE=InnoDB", out)
}

func TestNormalizeCreateStatementResetsAutoIncrement(t *testing.T) {
	in := "CREATE TABLE `users` (`id` int) ENGINE=InnoDB AUTO_INCREMENT=48213 DEFAULT CHARSET=utf8mb4"
	out := NormalizeCreateStatement(in)
	require.Contains(t, out, "AUTO_INCREMENT=1")
	require.NotContains(t, out, "48213")
}

func TestNormalizeCreateStatementLeavesUnqualifiedUnchanged(t *testing.T) {
	in := "CREATE TABLE `users` (\n  `id` int,\n  `note` varchar(255) DEFAULT 'a.b.c'\n)"
	out := NormalizeCreateStatement(in)
	require.Equal(t, in, out, "dots inside default values must not be touched")
}

func TestNormalizeCreateStatementCombined(t *testing.T) {
	in := "CREATE TABLE `shop`.`orders` (`id` int) ENGINE=InnoDB AUTO_INCREMENT=7 DEFAULT CHARSET=utf8mb4"
	out := NormalizeCreateStatement(in)
	require.Equal(t, "CREATE TABLE `orders` (`id` int) ENGINE=InnoDB AUTO_INCREMENT=1 DEFAULT CHARSET=utf8mb4", out)
}
