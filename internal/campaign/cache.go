package campaign

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// DefaultFileListTTL is used when the cache settings leave the TTL at zero.
const DefaultFileListTTL = 10 * time.Minute

// FileLoader loads the sorted files of a set of datasets.
type FileLoader func(ctx context.Context, datasetIDs []uint) ([]entities.DatasetFile, error)

// FileCache keeps the sorted file list of each campaign. Concurrent misses
// for the same campaign share a single load.
type FileCache struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewFileCache creates a cache whose entries expire after ttl.
func NewFileCache(ttl time.Duration) *FileCache {
	if ttl <= 0 {
		ttl = DefaultFileListTTL
	}
	return &FileCache{cache: cache.New(ttl, ttl*2)}
}

// Get returns the sorted files of the campaign, loading them on a miss.
func (fc *FileCache) Get(ctx context.Context, c *entities.AnnotationCampaign, load FileLoader) ([]entities.DatasetFile, error) {
	key := strconv.FormatUint(uint64(c.ID), 10)
	if cached, found := fc.cache.Get(key); found {
		if files, ok := cached.([]entities.DatasetFile); ok {
			return files, nil
		}
	}

	v, err, _ := fc.group.Do(key, func() (any, error) {
		files, err := load(ctx, DatasetIDs(c))
		if err != nil {
			return nil, err
		}
		fc.cache.Set(key, files, cache.DefaultExpiration)
		GetLogger().Debug("cached campaign files",
			logger.Uint("campaign_id", c.ID),
			logger.Int("files", len(files)))
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]entities.DatasetFile), nil
}

// Invalidate drops the cached files of one campaign.
func (fc *FileCache) Invalidate(campaignID uint) {
	fc.cache.Delete(strconv.FormatUint(uint64(campaignID), 10))
}

// Flush drops every cached file list.
func (fc *FileCache) Flush() {
	fc.cache.Flush()
}
