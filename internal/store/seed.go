package store

import "time"

// DevPosts returns a small bilingual data set for local development.
func DevPosts(now time.Time) []Post {
	noa := Author{ID: "65f000000000000000000001", Username: "noa", ProfileImage: "/uploads/noa.png"}
	dan := Author{ID: "65f000000000000000000002", Username: "dan"}

	return []Post{
		{
			ID:         "65f100000000000000000001",
			Author:     noa,
			Text:       "Broken swing at playground near school",
			LikesCount: 4,
			CreatedAt:  now.Add(-72 * time.Hour),
			UpdatedAt:  now.Add(-72 * time.Hour),
		},
		{
			ID:            "65f100000000000000000002",
			Author:        dan,
			Text:          "Dark alley with no streetlights on Main road",
			LikesCount:    9,
			CommentsCount: 2,
			CreatedAt:     now.Add(-48 * time.Hour),
			UpdatedAt:     now.Add(-48 * time.Hour),
		},
		{
			ID:            "65f100000000000000000003",
			Author:        noa,
			Text:          "Stray dogs near the park entrance",
			Image:         "/uploads/dogs.jpg",
			LikesCount:    1,
			CommentsCount: 5,
			CreatedAt:     now.Add(-24 * time.Hour),
			UpdatedAt:     now.Add(-24 * time.Hour),
		},
		{
			ID:         "65f100000000000000000004",
			Author:     dan,
			Text:       "כלבים משוטטים ליד גן השעשועים",
			LikesCount: 3,
			CreatedAt:  now.Add(-2 * time.Hour),
			UpdatedAt:  now.Add(-2 * time.Hour),
		},
	}
}
