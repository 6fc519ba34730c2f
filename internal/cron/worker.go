// Package cron runs the background price-refresh worker. PostgreSQL advisory
// locks coordinate replicas so only one worker executes a refresh cycle.
package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fueldash/fuelpriced/internal/alerting"
	"github.com/fueldash/fuelpriced/internal/metrics"
	"github.com/fueldash/fuelpriced/internal/notification"
	"github.com/fueldash/fuelpriced/internal/prices"
	"github.com/fueldash/fuelpriced/internal/storage"
	"github.com/fueldash/fuelpriced/pkg/sources"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources/doebulletin"
)

const (
	jobName = "refresh_prices"
	lockKey = int64(84215045)

	intervalSettingKey = "refresh_interval_seconds"
)

// Run starts the refresh worker control loop. The cycle interval comes from
// FUELPRICED_CRON_INTERVAL (integer seconds or a cron expression) and can be
// overridden at runtime through the refresh_interval_seconds setting row.
func Run(ctx context.Context, driver, dsn string, pcfg prices.Config) error {
	if driver == "" {
		driver = "postgrespool"
	}
	if driver != "postgrespool" {
		return fmt.Errorf("cron worker requires FUELPRICED_DB_DRIVER=postgrespool (got %q)", driver)
	}

	// Open storage via the generic factory, then assert the concrete type to
	// gain access to advisory locks and pool stats.
	var regionRows []storage.Region
	for _, rd := range prices.Regions() {
		regionRows = append(regionRows, rd.ToStorage())
	}
	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn, Regions: regionRows})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	pg, ok := st.(*storage.PostgresPoolStorage)
	if !ok {
		return fmt.Errorf("storage driver %q is not PostgresPoolStorage", driver)
	}

	svc := prices.NewServiceWithStorage(pcfg, st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())
	svc.SetBreakerAlerter(alerter)
	notifSvc := notification.NewService(st)

	intervalSetting := "3600"
	if raw := os.Getenv("FUELPRICED_CRON_INTERVAL"); raw != "" {
		intervalSetting = raw
	}
	if val, err := st.GetSetting(ctx, intervalSettingKey); err == nil && val != "" {
		intervalSetting = val
	}

	// Control loop ticker (re-reads config, decides whether to run).
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	getNextRun := func(setting string, lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(time.Hour)
	}

	// Run immediately on startup, then follow the schedule.
	nextRun := time.Now()

	log.Printf("cron worker starting, initial setting=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, intervalSettingKey); err == nil && val != "" && val != intervalSetting {
				log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
				intervalSetting = val
				nextRun = getNextRun(intervalSetting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			ok, err := pg.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}
			if !ok {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}

			var failures []alerting.RegionFailure
			func() {
				defer func() {
					if _, err := pg.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()
				failures = refreshAll(ctx, svc)
			}()

			var runErr error
			if len(failures) > 0 {
				runErr = fmt.Errorf("%d of %d regions failed to refresh", len(failures), len(prices.Regions()))
			}

			metrics.UpdateJobMetrics(jobName, started, runErr)
			reportPoolStats(pg)

			dur := time.Since(started)
			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := pg.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
				notifyFailures(ctx, alerter, notifSvc, failures, dur, started)
			} else {
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, dur)
			}

			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}

// refreshAll forces a live fetch for every configured region. Bulletin-backed
// regions get their PDF downloaded first so the parse sees current data.
func refreshAll(ctx context.Context, svc *prices.Service) []alerting.RegionFailure {
	var failures []alerting.RegionFailure
	client := prices.DefaultHTTPClient()

	for _, rd := range prices.Regions() {
		if src, ok := fuelsources.Get(rd.SourceKey); ok && src.Type() == sources.SourceTypeBulletin &&
			rd.SourceURL != "" && rd.BulletinPath != "" {
			if err := doebulletin.Download(ctx, client, rd.SourceURL, rd.BulletinPath); err != nil {
				log.Printf("cron: download bulletin for region %s failed: %v", rd.Key, err)
			}
		}

		if _, err := svc.Refresh(ctx, rd.Key); err != nil {
			log.Printf("cron: refresh region %s failed: %v", rd.Key, err)
			failures = append(failures, alerting.RegionFailure{
				Region:   rd.Key,
				Error:    err.Error(),
				Attempts: 1,
			})
		}
	}
	return failures
}

func notifyFailures(ctx context.Context, alerter *alerting.Alerter, notifSvc *notification.Service, failures []alerting.RegionFailure, dur time.Duration, started time.Time) {
	total := len(prices.Regions())
	alert := alerting.RefreshAlert{
		JobName:       jobName,
		TotalCount:    total,
		SuccessCount:  total - len(failures),
		FailedCount:   len(failures),
		Duration:      dur,
		FailedDetails: failures,
		Timestamp:     started,
	}
	if err := alerter.SendRefreshAlert(ctx, alert); err != nil {
		log.Printf("cron: send webhook alert failed: %v", err)
	}

	body := fmt.Sprintf("<p>%d of %d regions failed to refresh:</p><ul>", len(failures), total)
	for _, f := range failures {
		body += fmt.Sprintf("<li><b>%s</b>: %s</li>", f.Region, f.Error)
	}
	body += "</ul>"
	if err := notifSvc.SendAlertEmail(ctx, "fuelpriced: price refresh failures", body); err != nil {
		log.Printf("cron: send alert email failed: %v", err)
	}
}

func reportPoolStats(pg *storage.PostgresPoolStorage) {
	stat := pg.Pool().Stat()
	metrics.UpdateDBPoolMetrics("postgrespool",
		float64(stat.TotalConns()),
		float64(stat.IdleConns()),
		float64(stat.AcquiredConns()),
		uint64(stat.AcquireCount()),
	)
}
