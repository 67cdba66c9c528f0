package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/openfleet/maestro/internal/activity"
	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/vsphere"
)

const (
	healthProbeConcurrency = 8
	staleSeenCutoff        = 48 * time.Hour
)

// FleetHealthWorkflow probes every BMC in inventory and refreshes host
// statuses. Runs on a cron schedule. Hosts mid-update are skipped, and
// hosts that have not been seen for two days fall back to UNKNOWN.
func FleetHealthWorkflow(ctx workflow.Context) error {
	dbCtx := dbActivityCtx(ctx)

	var hosts []model.Host
	if err := workflow.ExecuteActivity(dbCtx, "ListHostsForHealthCheck").Get(ctx, &hosts); err != nil {
		return fmt.Errorf("list hosts: %w", err)
	}

	probeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
	})

	wg := workflow.NewWaitGroup(ctx)
	sem := workflow.NewSemaphore(ctx, healthProbeConcurrency)

	for _, h := range hosts {
		h := h // capture

		_ = sem.Acquire(ctx, 1)
		wg.Add(1)

		workflow.Go(ctx, func(gCtx workflow.Context) {
			defer wg.Done()
			defer sem.Release(1)

			var health activity.BMCHealth
			if err := workflow.ExecuteActivity(probeCtx, "CheckBMCHealth", h.BMCAddr).Get(gCtx, &health); err != nil {
				workflow.GetLogger(gCtx).Warn("health probe failed", "host", h.Hostname, "error", err)
				return
			}

			status := model.HostStatusOK
			if !health.Reachable {
				status = model.HostStatusError
			}
			if err := workflow.ExecuteActivity(dbActivityCtx(gCtx), "RecordHostHealth", activity.RecordHostHealthParams{
				HostID:  h.ID,
				Status:  status,
				Message: health.Detail,
			}).Get(gCtx, nil); err != nil {
				workflow.GetLogger(gCtx).Warn("record health failed", "host", h.Hostname, "error", err)
			}
		})
	}

	wg.Wait(ctx)

	var marked int64
	if err := workflow.ExecuteActivity(dbCtx, "StaleSeen", staleSeenCutoff).Get(ctx, &marked); err != nil {
		return fmt.Errorf("mark stale hosts: %w", err)
	}
	if marked > 0 {
		workflow.GetLogger(ctx).Info("hosts marked UNKNOWN for staleness", "count", marked)
	}
	return nil
}

// DiscoverHostsWorkflow syncs vCenter placement onto the host inventory.
// Runs on a cron schedule. Every configured vCenter is enumerated; when
// none are configured the fleet-wide vCenter from the environment is used.
func DiscoverHostsWorkflow(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)
	dbCtx := dbActivityCtx(ctx)

	var vcenters []model.VCenter
	if err := workflow.ExecuteActivity(dbCtx, "ListVCenters").Get(ctx, &vcenters); err != nil {
		return fmt.Errorf("list vcenters: %w", err)
	}

	names := make([]string, 0, len(vcenters))
	for _, v := range vcenters {
		names = append(names, v.Name)
	}
	if len(names) == 0 {
		names = append(names, "")
	}

	discoverCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
	})

	for _, name := range names {
		var found []vsphere.HostInfo
		if err := workflow.ExecuteActivity(discoverCtx, "DiscoverHosts", name).Get(ctx, &found); err != nil {
			logger.Warn("discovery failed", "vcenter", name, "error", err)
			continue
		}

		matched := 0
		for _, info := range found {
			var ok bool
			if err := workflow.ExecuteActivity(dbCtx, "SyncDiscoveredHost", activity.SyncDiscoveredHostParams{
				Hostname: info.Name,
				VCenter:  name,
				Cluster:  info.Cluster,
			}).Get(ctx, &ok); err != nil {
				logger.Warn("sync discovered host failed", "host", info.Name, "error", err)
				continue
			}
			if ok {
				matched++
			}
		}
		logger.Info("discovery pass finished", "vcenter", name, "seen", len(found), "matched", matched)
	}
	return nil
}
