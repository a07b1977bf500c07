package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juba-labs/hornwatch/internal/config"
	"github.com/juba-labs/hornwatch/internal/db"
	"github.com/juba-labs/hornwatch/internal/models"
)

// testStores opens a throwaway database for one handler test.
func testStores(t *testing.T) (*models.EventStore, *models.UnsubscribeStore, *models.QuarantineStore) {
	t.Helper()
	conn, err := db.Open(context.Background(), config.DBConfig{
		Path: filepath.Join(t.TempDir(), "handlers_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return models.NewEventStore(conn), models.NewUnsubscribeStore(conn), models.NewQuarantineStore(conn)
}

func seedEvent(t *testing.T, store *models.EventStore, hash string) {
	t.Helper()
	inserted, err := store.Insert(context.Background(), &models.Event{
		ClusterHash:        hash,
		Summary:            "Clashes reported around El Fasher",
		Country:            "Sudan",
		Regions:            []string{"North Darfur"},
		EventType:          "security",
		EventSubtype:       "clashes",
		Severity:           4,
		Scope:              "state",
		VerificationStatus: "reported",
		Confidence:         0.82,
		ActorsNormalized:   []string{"Rapid Support Forces"},
		ArticleCount:       2,
		Sources:            []string{"Sudan Tribune", "Radio Dabanga"},
		ArticleURLs:        []string{"https://sudantribune.com/article295882/"},
		PrimaryURL:         "https://sudantribune.com/article295882/",
		PrimaryTitle:       "Clashes around El Fasher",
		PublishedAt:        time.Now().UTC().Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	require.True(t, inserted)
}
