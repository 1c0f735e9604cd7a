//go:build ignore

// Package main generates a synthetic people corpus for benchmarking.
// Usage: go run scripts/generate-corpus.go -people 1000 -output testdata/bench/people.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numPeople = flag.Int("people", 1000, "Number of people to generate")
	output    = flag.String("output", "testdata/bench/people.json", "Output corpus file")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var firstNames = []string{
	"Ada", "Bo", "Carla", "Dev", "Elena", "Farid", "Grace", "Hiro",
	"Ines", "Jonas", "Kavya", "Liam", "Maya", "Nils", "Oluwaseun",
	"Priya", "Quentin", "Rosa", "Santiago", "Tara", "Uma", "Victor",
	"Wen", "Ximena", "Yusuf", "Zoe",
}

var lastNames = []string{
	"Lin", "Chen", "Diaz", "Patel", "Okafor", "Haddad", "Kim", "Tanaka",
	"Novak", "Berg", "Iyer", "Murphy", "Silva", "Larsen", "Adeyemi",
	"Sharma", "Roux", "Moreno", "Vega", "Nguyen", "Rao", "Kovacs",
	"Zhang", "Torres", "Demir", "Keller",
}

var units = []string{
	"Marketing", "Strategy", "Finance", "Operations", "Economics",
	"Organizational Behavior", "Technology Management", "Accounting",
}

var personTypes = []string{"faculty", "fellow", "lecturer", "researcher"}

var titlesByType = map[string][]string{
	"faculty":    {"Assistant Professor", "Associate Professor", "Professor"},
	"fellow":     {"Senior Fellow", "Research Fellow", "Executive Fellow"},
	"lecturer":   {"Lecturer", "Senior Lecturer"},
	"researcher": {"Research Scientist", "Postdoctoral Researcher"},
}

var topics = []string{
	"pricing strategy", "consumer behavior", "venture capital",
	"entrepreneurship", "supply chain resilience", "behavioral economics",
	"corporate governance", "machine learning applications",
	"digital platforms", "negotiation", "market design",
	"sustainable finance", "innovation management", "retail analytics",
}

var tagsByCategory = map[string][]string{
	"expertise": {
		"Pricing", "Entrepreneurship", "Negotiation", "Machine Learning",
		"Venture Capital", "Sustainability", "Platforms", "Governance",
		"Marketing Analytics", "Behavioral Science",
	},
	"industry": {
		"Retail", "Healthcare", "Fintech", "Energy", "Media",
		"Manufacturing", "Education",
	},
	"role": {
		"Advisor", "Board Member", "Founder", "Consultant",
	},
}

type tag struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type person struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Bio        string `json:"bio"`
	Unit       string `json:"unit"`
	PersonType string `json:"type"`
	Email      string `json:"email"`
	ProfileURL string `json:"profile_url"`
	Tags       []tag  `json:"tags"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	people := make([]person, 0, *numPeople)
	for i := 0; i < *numPeople; i++ {
		people = append(people, generatePerson(rng, i))
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(people, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal corpus: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write corpus: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d people in %s\n", len(people), *output)
}

func generatePerson(rng *rand.Rand, i int) person {
	first := firstNames[rng.Intn(len(firstNames))]
	last := lastNames[rng.Intn(len(lastNames))]
	name := fmt.Sprintf("%s %s", first, last)

	personType := personTypes[rng.Intn(len(personTypes))]
	titles := titlesByType[personType]
	title := titles[rng.Intn(len(titles))]
	unit := units[rng.Intn(len(units))]

	primary := topics[rng.Intn(len(topics))]
	secondary := topics[rng.Intn(len(topics))]
	bio := fmt.Sprintf("%s is a %s in %s. Their research focuses on %s, with recent work on %s.",
		name, title, unit, primary, secondary)

	// 1-4 tags, mixed categories, occasionally none
	var tags []tag
	for _, category := range []string{"expertise", "industry", "role"} {
		if rng.Intn(3) == 0 {
			continue
		}
		pool := tagsByCategory[category]
		tags = append(tags, tag{Name: pool[rng.Intn(len(pool))], Category: category})
	}

	return person{
		Name:       name,
		Title:      title,
		Bio:        bio,
		Unit:       unit,
		PersonType: personType,
		Email:      fmt.Sprintf("%s.%s%d@example.edu", first, last, i),
		ProfileURL: fmt.Sprintf("https://example.edu/people/%d", i),
		Tags:       tags,
	}
}
