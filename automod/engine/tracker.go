package engine

import (
	"context"
	"fmt"
	"sort"
	"time"
)

type TrackEventKind string

const (
	TrackEventTrack   TrackEventKind = "track"
	TrackEventUntrack TrackEventKind = "untrack"
)

// Request to start or stop continuous moderation of a post. Produced by webhook and queue consumers.
type TrackEvent struct {
	Kind TrackEventKind `json:"kind"`
	Post TrackedPost    `json:"post"`
}

func (evt TrackEvent) Validate() error {
	if evt.Kind != TrackEventTrack && evt.Kind != TrackEventUntrack {
		return fmt.Errorf("unknown track event kind: %q", evt.Kind)
	}
	if _, err := ParsePlatform(string(evt.Post.Platform)); err != nil {
		return err
	}
	if evt.Post.PostID == "" {
		return fmt.Errorf("track event missing post id")
	}
	return nil
}

// Summary of the most recent pass run in tracking mode, or nil.
func (eng *Engine) LastPass() *PassSummary {
	return eng.lastPass.Load()
}

// Continuous tracking mode: drains track/untrack events, and runs a pass over all tracked posts every PollInterval.
//
// The tracked set is owned by this loop; passes never run inside the event producer. Returns when ctx is done. A closed events channel stops intake, but polling continues.
func (eng *Engine) RunTracking(ctx context.Context, initial []TrackedPost, events <-chan TrackEvent) error {
	interval := eng.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logger := eng.logger().With("system", "tracker")

	tracked := make(map[string]TrackedPost)
	for _, p := range initial {
		tracked[p.Key()] = p
	}
	trackedPosts.Set(float64(len(tracked)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runPass := func() {
		if len(tracked) == 0 {
			return
		}
		posts := make([]TrackedPost, 0, len(tracked))
		for _, p := range tracked {
			posts = append(posts, p)
		}
		sortPosts(posts)
		sum := eng.RunPass(ctx, posts)
		eng.lastPass.Store(&sum)
	}

	runPass()
	for {
		select {
		case <-ctx.Done():
			logger.Info("tracking stopped", "tracked", len(tracked))
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				logger.Info("track event source closed")
				events = nil
				continue
			}
			if err := evt.Validate(); err != nil {
				logger.Warn("ignoring invalid track event", "err", err)
				continue
			}
			switch evt.Kind {
			case TrackEventTrack:
				if _, exists := tracked[evt.Post.Key()]; !exists {
					logger.Info("tracking post", "platform", evt.Post.Platform, "post", evt.Post.PostID)
				}
				tracked[evt.Post.Key()] = evt.Post
			case TrackEventUntrack:
				logger.Info("untracking post", "platform", evt.Post.Platform, "post", evt.Post.PostID)
				delete(tracked, evt.Post.Key())
			}
			trackedPosts.Set(float64(len(tracked)))
		case <-ticker.C:
			runPass()
		}
	}
}

func sortPosts(posts []TrackedPost) {
	sort.Slice(posts, func(i, j int) bool { return posts[i].Key() < posts[j].Key() })
}
