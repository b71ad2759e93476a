package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const plannerSystemPrompt = `Role: You are an experienced travel planner who designs realistic trips for families and groups.
Be specific: name real places, neighbourhoods and dishes. Respect the stated budget and the ages of the travellers.
Never invent prices you cannot justify; give ranges instead.`

// describeTravelers renders the profile as prompt context.
func describeTravelers(p TravelerProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Departing from: %s\n", p.Origin)
	fmt.Fprintf(&b, "- Adults: %d\n", p.Adults)
	fmt.Fprintf(&b, "- Children: %d", p.Children)
	if len(p.ChildAges) > 0 {
		ages := make([]string, len(p.ChildAges))
		for i, a := range p.ChildAges {
			ages[i] = strconv.Itoa(a)
		}
		fmt.Fprintf(&b, " (ages %s)", strings.Join(ages, ", "))
	}
	b.WriteString("\n")

	interests := "none given"
	if len(p.Interests) > 0 {
		interests = strings.Join(p.Interests, ", ")
	}
	fmt.Fprintf(&b, "- Interests: %s\n", interests)

	budget := p.Budget
	if budget == "" {
		budget = "moderate"
	}
	fmt.Fprintf(&b, "- Budget: %s\n", budget)
	if p.TripLengthDays > 0 {
		fmt.Fprintf(&b, "- Trip length: %d days\n", p.TripLengthDays)
	}
	return b.String()
}

func buildDestinationPrompt(p TravelerProfile, now time.Time) string {
	return fmt.Sprintf(`Suggest 5 destinations for this trip.

Travellers:
%s- Current month: %s (consider seasonality and weather)

Return a JSON array. Each element must have:
{
  "name": "string",
  "country": "string",
  "description": "2-3 sentences",
  "why_it_fits": "why this suits these travellers",
  "highlights": ["string"],
  "best_months": ["string"],
  "travel_time": "approximate travel time from the origin",
  "estimated_cost": "rough cost range for the group"
}`, describeTravelers(p), now.Month().String())
}

var sectionInstructions = map[Section]string{
	SectionLodging: `Recommend 3-4 places to stay (hotels, rentals or resorts) in different price bands.
For each give the name, the area, why it suits this group and an approximate nightly rate.`,
	SectionDining: `Recommend 5-6 restaurants or food experiences, including at least one local speciality
and options that work for the youngest traveller. Give the name, cuisine, price level and one dish to try.`,
	SectionActivities: `Propose a day-by-day plan of activities and sights. Balance busy and relaxed days,
note booking requirements and which activities suit which ages.`,
	SectionTips: `Give practical tips: getting around, money, safety, packing for the season,
local etiquette and anything families in particular should know.`,
}

func buildSectionPrompt(section Section, req ItineraryRequest, now time.Time) string {
	return fmt.Sprintf(`Destination: %s

Travellers:
%s- Travelling in: %s

Task (%s):
%s

Answer in concise Markdown with headings and bullet points.`,
		req.Destination, describeTravelers(req.Profile), now.Month().String(), section, sectionInstructions[section])
}

const extractionPrompt = `Extract the traveller requirements from the message below.

Return a JSON object with exactly these fields:
{
  "origin": "city or airport the travellers leave from",
  "adults": integer (default 1 if not stated),
  "children": integer (default 0),
  "child_ages": [integer],
  "interests": ["string"],
  "budget": "budget | moderate | luxury",
  "trip_length_days": integer (0 if not stated)
}
Do not guess an origin that is not mentioned; leave it as an empty string.

Message:
%s`
