package main

import (
	"fmt"
	"time"

	"github.com/moderation-ai/modai/automod/engine"

	"github.com/brianvoe/gofakeit/v6"
)

const fakePostID = "generated"

// Generates benign-looking filler comments, for exercising a demo pass at volume. Output is stable for a given seed.
func fakeComments(n int, seed int64) []engine.Comment {
	faker := gofakeit.New(seed)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]engine.Comment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, engine.Comment{
			ID:         fmt.Sprintf("fake-%d", i),
			AuthorID:   faker.Username(),
			Text:       faker.Sentence(10),
			CreatedAt:  faker.DateRange(start, start.AddDate(0, 1, 0)),
			LikeCount:  faker.Number(0, 500),
			ReplyCount: faker.Number(0, 20),
		})
	}
	return out
}
