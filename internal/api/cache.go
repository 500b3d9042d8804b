package api

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"options-position-lab/internal/observability"
	"options-position-lab/internal/replay"
)

const dayCacheName = "day"

// dayCache keeps fully loaded trading days in memory so repeated reads of an
// archived day skip the store. Only unfiltered loads are cached; filter
// combinations are recomputed on demand.
type dayCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func newDayCache(ttl time.Duration) (*dayCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     256,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &dayCache{c: c, ttl: ttl}, nil
}

func (dc *dayCache) Get(day string) (*replay.TradingDayData, bool) {
	v, ok := dc.c.Get(day)
	if !ok {
		observability.RecordCacheEvent(dayCacheName, "miss")
		return nil, false
	}
	data, ok := v.(*replay.TradingDayData)
	if !ok {
		return nil, false
	}
	observability.RecordCacheEvent(dayCacheName, "hit")
	return data, true
}

func (dc *dayCache) Set(day string, data *replay.TradingDayData) {
	dc.c.SetWithTTL(day, data, 1, dc.ttl)
}

func (dc *dayCache) Clear() {
	dc.c.Clear()
}

// Wait flushes pending writes. Sets are buffered and applied asynchronously,
// so a read immediately after a write may miss without this.
func (dc *dayCache) Wait() {
	dc.c.Wait()
}

func (dc *dayCache) Close() {
	dc.c.Close()
}
