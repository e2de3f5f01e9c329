package epg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/metrics"
	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/store"
	"github.com/voyagen/streamvault/internal/xtream"
)

// GuideClient is the slice of the upstream client the EPG service uses.
type GuideClient interface {
	GetShortEPG(ctx context.Context, streamID string, limit int) (*xtream.ShortEPG, error)
}

const (
	// nowNextTTL keeps now/next answers fresh enough for a channel zapper
	// without hitting Postgres on every request.
	nowNextTTL = time.Minute

	defaultListingLimit = 10
)

// Service owns guide ingestion and the now/next query path. Redis is
// optional; without it every now/next query goes to the store.
type Service struct {
	Store store.Store
	Redis *cache.Redis
	Log   *logrus.Logger
	// ClientFactory builds the guide client for one provider account.
	ClientFactory func(*models.Provider) GuideClient

	// Cutoff is how far back ended programs are retained.
	Cutoff time.Duration
	// ListingLimit caps entries fetched per channel, defaulting to 10.
	ListingLimit int
}

func (s *Service) log() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

func (s *Service) limit() int {
	if s.ListingLimit > 0 {
		return s.ListingLimit
	}
	return defaultListingLimit
}

func (s *Service) client(p *models.Provider) GuideClient {
	if s.ClientFactory != nil {
		return s.ClientFactory(p)
	}
	return xtream.New(p.BaseURL, p.Username, p.Password)
}

// SyncProvider refreshes the guide for every live channel of the provider
// that maps to an EPG channel, then purges entries past the retention cutoff.
// A channel whose fetch fails is skipped; the rest of the guide still lands.
func (s *Service) SyncProvider(ctx context.Context, providerID int64) (int, error) {
	p, err := s.Store.GetProvider(ctx, providerID)
	if err != nil {
		return 0, err
	}
	refs, err := s.Store.ListEPGChannelRefs(ctx, providerID)
	if err != nil {
		return 0, err
	}
	client := s.client(p)
	log := s.log().WithField("provider_id", providerID)

	total := 0
	failed := 0
	for _, ref := range refs {
		guide, err := client.GetShortEPG(ctx, ref.StreamID, s.limit())
		if err != nil {
			failed++
			log.WithError(err).WithField("stream_id", ref.StreamID).Debug("guide fetch failed")
			continue
		}
		programs := parsePrograms(providerID, ref.EPGChannelID, guide.Listings)
		if len(programs) == 0 {
			continue
		}
		n, err := s.Store.UpsertEPGPrograms(ctx, programs)
		if err != nil {
			return total, err
		}
		total += n
	}
	metrics.EPGProgramsUpserted.Add(float64(total))

	if s.Cutoff > 0 {
		purged, err := s.Store.DeleteEPGProgramsBefore(ctx, providerID, time.Now().Add(-s.Cutoff))
		if err != nil {
			return total, err
		}
		if purged > 0 {
			log.WithField("purged", purged).Debug("stale guide entries removed")
		}
	}
	if err := s.Store.SetProviderEPGSynced(ctx, providerID); err != nil {
		return total, err
	}
	log.WithFields(logrus.Fields{
		"channels": len(refs), "failed": failed, "programs": total,
	}).Info("guide sync completed")
	return total, nil
}

// Due reports whether a provider's guide wants a refresh: never synced, or
// last synced longer ago than its configured interval.
func Due(p *models.Provider, now time.Time) bool {
	if p.EPGSyncedAt == nil {
		return true
	}
	return now.Sub(*p.EPGSyncedAt) >= p.EPGSyncInterval()
}

// RunScheduler ticks at the given interval and refreshes the guide for every
// provider that is due. It returns when the context is cancelled.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		providers, err := s.Store.ListProviders(ctx)
		if err != nil {
			s.log().WithError(err).Error("guide scheduler listing failed")
			continue
		}
		now := time.Now()
		for i := range providers {
			p := &providers[i]
			if !Due(p, now) {
				continue
			}
			if _, err := s.SyncProvider(ctx, p.ID); err != nil {
				s.log().WithError(err).WithField("provider_id", p.ID).Error("guide sync failed")
			}
		}
	}
}

func nowNextKey(providerID int64, channelID string) string {
	return fmt.Sprintf("epg:nownext:%d:%s", providerID, channelID)
}

// NowNext answers what is airing on one channel right now and what follows.
// Answers are cached for a minute.
func (s *Service) NowNext(ctx context.Context, providerID int64, channelID string) (models.NowNext, error) {
	key := nowNextKey(providerID, channelID)
	if s.Redis != nil {
		nn, err := cache.Get[models.NowNext](ctx, s.Redis, key)
		if err == nil {
			metrics.CacheHits.WithLabelValues("epg_nownext").Inc()
			return nn, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.log().WithError(err).Warn("now/next cache read failed")
		}
	}
	metrics.CacheMisses.WithLabelValues("epg_nownext").Inc()

	now := time.Now()
	programs, err := s.Store.NextPrograms(ctx, providerID, channelID, now, 2)
	if err != nil {
		return models.NowNext{}, err
	}
	nn := pickNowNext(programs, now)
	if s.Redis != nil {
		if err := cache.Set(ctx, s.Redis, key, nn, nowNextTTL); err != nil {
			s.log().WithError(err).Warn("now/next cache write failed")
		}
	}
	return nn, nil
}

// Current returns the program airing right now for each requested channel.
func (s *Service) Current(ctx context.Context, providerID int64, channelIDs []string) (map[string]models.EPGProgram, error) {
	return s.Store.CurrentPrograms(ctx, providerID, channelIDs, time.Now())
}
