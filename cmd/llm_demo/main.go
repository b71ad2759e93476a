package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wayfare/internal/ai"
	"wayfare/internal/infra"
	"wayfare/internal/service"
)

func main() {
	_ = godotenv.Load()

	origin := flag.String("origin", "Seattle, WA", "where the trip starts")
	adults := flag.Int("adults", 2, "number of adults")
	children := flag.Int("children", 0, "number of children")
	interests := flag.String("interests", "food,hiking", "comma-separated interests")
	budget := flag.String("budget", "moderate", "budget level")
	model := flag.String("model", "", "provider/model to use instead of the default fallback chain")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := infra.NewLogger(os.Stderr, "info", "text")

	providers, closeProviders, err := ai.NewProviders(ctx, ai.Keys{
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Gemini:    os.Getenv("GEMINI_API_KEY"),
	})
	defer closeProviders()
	if err != nil {
		log.Fatalf("set at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY: %v", err)
	}
	llm, err := ai.NewClient(providers, ai.WithClientLogger(logger))
	if err != nil {
		log.Fatal(err)
	}

	var models []service.ModelChoice
	if *model != "" {
		if models, err = service.ParseModelChoices([]string{*model}); err != nil {
			log.Fatal(err)
		}
	}
	recs, err := service.NewRecommendationService(llm, models, logger)
	if err != nil {
		log.Fatal(err)
	}

	profile := service.TravelerProfile{
		Origin:    *origin,
		Adults:    *adults,
		Children:  *children,
		Interests: strings.Split(*interests, ","),
		Budget:    *budget,
	}
	fmt.Printf("Providers: %s\n", strings.Join(llm.AvailableProviders(), ", "))
	fmt.Printf("Traveling from %s with %d adult(s), %d child(ren)\n\n", profile.Origin, profile.Adults, profile.Children)

	dests, err := recs.SuggestDestinations(ctx, profile)
	if err != nil {
		log.Fatalf("suggest destinations (%s): %v", ai.KindOf(err), err)
	}
	for i, d := range dests {
		fmt.Printf("%d. %s, %s\n   %s\n", i+1, d.Name, d.Country, d.Description)
		if d.WhyItFits != "" {
			fmt.Printf("   Why: %s\n", d.WhyItFits)
		}
	}
}
