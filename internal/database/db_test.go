package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementVerb(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT 1", want: "SELECT"},
		{sql: "\n\t\tinsert into shops (domain) values ($1)", want: "INSERT"},
		{sql: "WITH due AS (SELECT 1) UPDATE tasks SET status = 'processing'", want: "WITH"},
		{sql: "   ", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statementVerb(tt.sql))
	}
}

func TestStatusWithoutPool(t *testing.T) {
	Close()
	assert.Nil(t, Pool())
	assert.Nil(t, Stats())
	assert.EqualError(t, Status(context.Background()), "database not initialized")
}
