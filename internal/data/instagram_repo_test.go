package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/testutil"
)

func TestInstagramPostLogRepo_CreateAndDedup(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewInstagramPostLogRepo(db)
		ctx := context.Background()

		_, businessID := insertOwnerAndBusiness(ctx, t, db)

		created, err := repo.Create(ctx, &model.InstagramPostLog{
			BusinessID:        businessID,
			InstagramPostID:   "3001",
			OriginalPermalink: "https://www.instagram.com/p/abc123/",
			OriginalCaption:   "Popup this Saturday! #popmap",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, businessID, created.BusinessID)
		assert.Nil(t, created.EventID)
		assert.WithinDuration(t, time.Now(), created.ImportedAt, 5*time.Second)

		// Same post again trips the unique (business, post) constraint.
		_, err = repo.Create(ctx, &model.InstagramPostLog{
			BusinessID:      businessID,
			InstagramPostID: "3001",
		})
		require.ErrorIs(t, err, ErrInstagramPostAlreadyImported)

		ids, err := repo.ListPostIDs(ctx, businessID)
		require.NoError(t, err)
		assert.Equal(t, []string{"3001"}, ids)
	})
}

func TestInstagramPostLogRepo_History(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewInstagramPostLogRepo(db)
		eventRepo := NewEventRepo(db)
		ctx := context.Background()

		ownerID, businessID := insertOwnerAndBusiness(ctx, t, db)

		start := time.Now().Add(24 * time.Hour).UTC()
		event, err := eventRepo.Create(ctx, &model.CreateEventRequest{
			BusinessID: businessID,
			CreatorID:  ownerID,
			Title:      "Night Market",
			Address:    "100 SE Alder St, Portland, OR",
			Latitude:   45.5165,
			Longitude:  -122.6564,
			StartTime:  start,
			EndTime:    start.Add(2 * time.Hour),
		})
		require.NoError(t, err)

		linked, err := repo.Create(ctx, &model.InstagramPostLog{
			BusinessID:      businessID,
			InstagramPostID: "3001",
			EventID:         &event.ID,
			OriginalCaption: "linked post",
		})
		require.NoError(t, err)

		_, err = repo.Create(ctx, &model.InstagramPostLog{
			BusinessID:      businessID,
			InstagramPostID: "3002",
			OriginalCaption: "unlinked post",
		})
		require.NoError(t, err)

		entries, err := repo.ListByBusiness(ctx, businessID, 50)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		byPost := map[string]*model.InstagramImportLogEntry{}
		for _, e := range entries {
			byPost[e.InstagramPostID] = e
		}
		require.NotNil(t, byPost["3001"].EventTitle)
		assert.Equal(t, "Night Market", *byPost["3001"].EventTitle)
		assert.Equal(t, linked.ID, byPost["3001"].ID)
		assert.Nil(t, byPost["3002"].EventTitle)

		// The draft going away leaves the ledger row with a NULL link.
		_, err = eventRepo.Delete(ctx, event.ID)
		require.NoError(t, err)

		entries, err = repo.ListByBusiness(ctx, businessID, 50)
		require.NoError(t, err)
		byPost = map[string]*model.InstagramImportLogEntry{}
		for _, e := range entries {
			byPost[e.InstagramPostID] = e
		}
		assert.Nil(t, byPost["3001"].EventID)
		assert.Nil(t, byPost["3001"].EventTitle)
	})
}
