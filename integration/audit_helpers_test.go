package integration_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// auditCounts returns how many events of each type the audit log holds.
func auditCounts(t *testing.T, dbPath string) map[string]int {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err, "open audit db")
	t.Cleanup(func() {
		_ = db.Close()
	})

	rows, err := db.Query("SELECT type, COUNT(*) FROM events GROUP BY type")
	require.NoError(t, err, "query audit events")
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var n int
		require.NoError(t, rows.Scan(&eventType, &n))
		counts[eventType] = n
	}
	require.NoError(t, rows.Err())
	return counts
}

func requireAuditEvents(t *testing.T, dbPath string, want []string) {
	t.Helper()
	counts := auditCounts(t, dbPath)
	for _, eventType := range want {
		require.Positive(t, counts[eventType], "missing audit event %s in %s (have %v)", eventType, dbPath, counts)
	}
}
