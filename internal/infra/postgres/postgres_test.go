package postgres

import (
	"testing"

	"github.com/sifan077/linkgate/config"
	"github.com/stretchr/testify/assert"
)

func TestConnString(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.PostgresConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  config.PostgresConfig{Database: "linkgate"},
			want: "postgres://localhost:5432/linkgate?sslmode=disable",
		},
		{
			name: "credentials are escaped",
			cfg: config.PostgresConfig{
				Host: "db", Port: 6543, User: "app", Password: "p@ss/word",
				Database: "links", SSLMode: "require",
			},
			want: "postgres://app:p%40ss%2Fword@db:6543/links?sslmode=require",
		},
		{
			name: "user only",
			cfg:  config.PostgresConfig{User: "app", Database: "links"},
			want: "postgres://app@localhost:5432/links?sslmode=disable",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ConnString(tc.cfg))
		})
	}
}
