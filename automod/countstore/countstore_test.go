package countstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketKey(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2024, 6, 1, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	assert.Equal("modai-quota/reddit", bucketKey("modai-quota", "reddit", PeriodTotal, now))
	// buckets are UTC
	assert.Equal("modai-quota/reddit/2024-06-02", bucketKey("modai-quota", "reddit", PeriodDay, now))
	assert.Equal("modai-quota/reddit/2024-06-02T06", bucketKey("modai-quota", "reddit", PeriodHour, now))
	assert.Equal("modai-quota/reddit", bucketKey("modai-quota", "reddit", "fortnight", now))
}

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "modai-quota", "youtube", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "modai-quota", "youtube"))
	assert.NoError(cs.Increment(ctx, "modai-quota", "youtube"))

	for _, period := range Periods {
		c, err = cs.GetCount(ctx, "modai-quota", "youtube", period)
		assert.NoError(err)
		assert.Equal(2, c, period)
	}

	// distinct authors on one post
	for _, author := range []string{"a1", "a1", "a1", "a2", "a3"} {
		assert.NoError(cs.IncrementDistinct(ctx, "modai-post-offenders", "reddit/p1", author))
	}
	for _, period := range Periods {
		c, err = cs.GetCountDistinct(ctx, "modai-post-offenders", "reddit/p1", period)
		assert.NoError(err)
		assert.Equal(3, c, period)
	}
	c, err = cs.GetCountDistinct(ctx, "modai-post-offenders", "reddit/p2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStoreDayRollover(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	cs := NewMemCountStore()
	cs.Clock = func() time.Time { return now }

	assert.NoError(cs.Increment(ctx, "modai-quota", "twitter"))
	assert.NoError(cs.Increment(ctx, "modai-quota", "twitter"))

	now = now.Add(2 * time.Minute)
	day, err := cs.GetCount(ctx, "modai-quota", "twitter", PeriodDay)
	assert.NoError(err)
	assert.Equal(0, day)
	total, err := cs.GetCount(ctx, "modai-quota", "twitter", PeriodTotal)
	assert.NoError(err)
	assert.Equal(2, total)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// writers and readers interleave; run with -race
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				assert.NoError(cs.Increment(ctx, "modai-author-violations", "a1"))
				assert.NoError(cs.IncrementDistinct(ctx, "modai-post-offenders", "p1", fmt.Sprintf("author-%d", w)))
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := cs.GetCount(ctx, "modai-author-violations", "a1", PeriodTotal)
				assert.NoError(err)
			}
		}()
	}
	wg.Wait()

	c, err := cs.GetCount(ctx, "modai-author-violations", "a1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(40, c)
	c, err = cs.GetCountDistinct(ctx, "modai-post-offenders", "p1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(4, c)
}

func TestRedisCountStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	cs, err := NewRedisCountStore("redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}

	before, err := cs.GetCount(ctx, "modai-test", "val1", PeriodDay)
	assert.NoError(err)
	assert.NoError(cs.Increment(ctx, "modai-test", "val1"))
	after, err := cs.GetCount(ctx, "modai-test", "val1", PeriodDay)
	assert.NoError(err)
	assert.Equal(before+1, after)

	assert.NoError(cs.IncrementDistinct(ctx, "modai-test", "bucket1", "x"))
	c, err := cs.GetCountDistinct(ctx, "modai-test", "bucket1", PeriodTotal)
	assert.NoError(err)
	assert.GreaterOrEqual(c, 1)
}
