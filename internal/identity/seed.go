package identity

import "example.com/fitsocial/internal/domain"

// DemoProfiles returns the profiles used when no backing store is configured.
func DemoProfiles() []domain.UserProfile {
	return []domain.UserProfile{
		{
			ID:                    "u1",
			Name:                  "Alex Berger",
			Age:                   31,
			Location:              "Berlin",
			Bio:                   "Mostly runs before work, gym twice a week.",
			Sports:                []domain.SportType{domain.SportRunning, domain.SportGym},
			Level:                 domain.LevelIntermediate,
			WeeklyFrequencyTarget: 4,
			AvatarRef:             "https://picsum.photos/seed/alex/200/200",
		},
		{
			ID:                    "u2",
			Name:                  "Sarah Mueller",
			Age:                   28,
			Location:              "Berlin",
			Bio:                   "Training for my first Hyrox Pro race. Looking for someone to push me.",
			Sports:                []domain.SportType{domain.SportHyrox, domain.SportRunning, domain.SportCrossfit},
			Level:                 domain.LevelPro,
			WeeklyFrequencyTarget: 5,
			AvatarRef:             "https://picsum.photos/seed/sarah/200/200",
		},
		{
			ID:                    "u3",
			Name:                  "Tom Weber",
			Age:                   34,
			Location:              "Munich",
			Bio:                   "Long weekend runs. Looking for 10-15km partners.",
			Sports:                []domain.SportType{domain.SportRunning, domain.SportCycling},
			Level:                 domain.LevelIntermediate,
			WeeklyFrequencyTarget: 3,
			AvatarRef:             "https://picsum.photos/seed/tom/200/200",
		},
		{
			ID:                    "u4",
			Name:                  "Lisa Chen",
			Age:                   25,
			Location:              "Hamburg",
			Bio:                   "Yoga in the morning, gym in the evening.",
			Sports:                []domain.SportType{domain.SportYoga, domain.SportGym},
			Level:                 domain.LevelBeginner,
			WeeklyFrequencyTarget: 4,
			AvatarRef:             "https://picsum.photos/seed/lisa/200/200",
		},
		{
			ID:                    "u5",
			Name:                  "Markus Brandt",
			Age:                   30,
			Location:              "Cologne",
			Bio:                   "All or nothing. Crossfit and weightlifting.",
			Sports:                []domain.SportType{domain.SportCrossfit, domain.SportGym, domain.SportHyrox},
			Level:                 domain.LevelCompetitive,
			WeeklyFrequencyTarget: 6,
			AvatarRef:             "https://picsum.photos/seed/markus/200/200",
		},
	}
}

// Seed loads the demo profiles into d.
func (d *Directory) Seed() {
	for _, profile := range DemoProfiles() {
		_ = d.Put(profile)
	}
}
