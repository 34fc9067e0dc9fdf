package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	tests := []struct {
		dialect   string
		wantCount int
		wantErr   bool
	}{
		{dialect: "mysql", wantCount: 1},
		{dialect: "sqlite", wantCount: 2},
		{dialect: "postgres", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			got, err := Statements(tt.dialect)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, tt.wantCount)
			assert.Contains(t, got[0], "CREATE TABLE IF NOT EXISTS surveys")
			for _, stmt := range got {
				assert.Contains(t, stmt, "prompt_normalized")
				assert.NotContains(t, stmt, ";")
			}
		})
	}
}

func TestStatements_MySQLComparesKeysByBytes(t *testing.T) {
	got, err := Statements("mysql")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "prompt_normalized VARCHAR(220) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL")
	assert.Contains(t, got[0], "survey_json LONGTEXT NOT NULL")
}
