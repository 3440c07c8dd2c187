package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RefreshInput is the input for the catalog refresh workflow.
type RefreshInput struct {
	Network string
}

// CatalogRefreshWorkflow re-syncs the station catalog from the upstream
// router: fetch and upsert the catalog, drop derived cache entries, and
// announce the refresh to connected clients. Cache invalidation must
// not be skipped when the upsert succeeded, otherwise readers keep
// serving the previous catalog for the full TTL.
func CatalogRefreshWorkflow(ctx workflow.Context, input RefreshInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting catalog refresh workflow", "network", input.Network)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: fetch the upstream catalog and upsert it
	var count int
	err := workflow.ExecuteActivity(ctx, "FetchAndStoreCatalog", input.Network).Get(ctx, &count)
	if err != nil {
		return err
	}

	// Step 2: invalidate derived cache entries
	err = workflow.ExecuteActivity(ctx, "InvalidateCatalogCache").Get(ctx, nil)
	if err != nil {
		return err
	}

	// Step 3: tell connected clients to re-pull. Best effort: a failed
	// broadcast leaves clients one poll behind, nothing to roll back.
	if err := workflow.ExecuteActivity(ctx, "BroadcastRefresh", input.Network, count).Get(ctx, nil); err != nil {
		logger.Warn("refresh broadcast failed", "error", err)
	}

	logger.Info("Catalog refresh complete", "stations", count)
	return nil
}
