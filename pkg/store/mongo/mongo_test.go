package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/artifact/artifacttest"
)

// Set IMPACT_TEST_MONGO_URI (for example mongodb://localhost:27017) to run
// against a live server.
func TestStore(t *testing.T) {
	uri := os.Getenv("IMPACT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("IMPACT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	artifacttest.Run(t, func(t *testing.T) artifact.Store {
		coll := client.Database("impactrefresh_test").Collection("artifacts_" + uuid.NewString()[:8])
		t.Cleanup(func() { coll.Drop(context.Background()) })
		s := New(coll)
		if err := s.EnsureIndexes(ctx); err != nil {
			t.Fatalf("EnsureIndexes() error: %v", err)
		}
		return s
	})
}
