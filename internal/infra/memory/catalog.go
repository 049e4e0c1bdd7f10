package memory

import "exit-readiness-service/internal/domain"

// ExitReadinessQuizID identifies the built-in scorecard.
const ExitReadinessQuizID = "exit-readiness"

// ExitReadinessQuiz returns the built-in ten-question scorecard across five domains.
func ExitReadinessQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    ExitReadinessQuizID,
		Title: "Exit Readiness Scorecard",
		Domains: []domain.Domain{
			{
				ID:          "customer_clarity",
				Name:        "Customer Clarity",
				BuyerSignal: "Clarity in adoption drivers",
				RiskIfWeak:  "Missed traction",
				Opportunities: domain.Opportunities{
					High:   "Document segment dominance with metrics buyers can verify: win rates by segment, NPS by persona, acquisition cost by channel.",
					Medium: "Segments are defined but not executed consistently. Check that each segment gets its own outreach and proof points.",
					Low:    "Document your top three customer types, interview customers in each, and test segment-specific messaging against conversion.",
				},
			},
			{
				ID:          "messaging_strength",
				Name:        "Messaging Strength",
				BuyerSignal: "Differentiation",
				RiskIfWeak:  "Lower multiples",
				Opportunities: domain.Opportunities{
					High:   "Pressure-test your messaging: track which messages convert fastest and whether new hires can state your differentiation in week one.",
					Medium: "Ask ten people across the company how you are different. Ten different answers means alignment work remains.",
					Low:    "Interview recent wins and losses, craft two or three core differentiators from what they say, and measure what moves deals.",
				},
			},
			{
				ID:          "brand_positioning",
				Name:        "Brand Positioning",
				BuyerSignal: "Category leadership",
				RiskIfWeak:  `"Me too" valuation`,
				Opportunities: domain.Opportunities{
					High:   "Keep momentum with regular thought leadership, award submissions, speaking slots and PR that reinforces category ownership.",
					Medium: "Audit where you appear when prospects research your space and build a six-month visibility plan.",
					Low:    "Start with search optimization, one industry publication feature and two or three documented customer success stories.",
				},
			},
			{
				ID:          "corporate_story",
				Name:        "Corporate Story",
				BuyerSignal: "Vision + traction",
				RiskIfWeak:  "Lost credibility",
				Opportunities: domain.Opportunities{
					High:   "Tell the story consistently across investor decks, sales conversations, recruiting and media.",
					Medium: "Connect the pieces: where you started, your insight, where you are going and the proof. Practice it in two and ten minutes.",
					Low:    "Run a leadership working session to document the founder insight, three-year targets and proof you are on track.",
				},
			},
			{
				ID:          "market_presence",
				Name:        "Market Presence",
				BuyerSignal: "Credibility signals",
				RiskIfWeak:  "Longer cycles",
				Opportunities: domain.Opportunities{
					High:   "Keep refining: test website messaging, refresh case studies quarterly and track which materials shorten deal cycles.",
					Medium: "Get outside feedback on your assets and prioritize the two or three updates with the biggest impact.",
					Low:    "Rebuild the pitch deck first, then the website homepage. Buyers judge you in ten seconds.",
				},
			},
		},
		Questions: []domain.Question{
			question("customerClarity1", "customer_clarity", 1, "Customer Segmentation Strategy",
				"Can you name your top 3 customer segments and explain what drives each one's buying decision?",
				"We serve the market broadly with no clear segments",
				"We have 2-3 general categories",
				"We have 3 defined segments with basic pain points",
				"We have 3 segments with validated buying criteria and personas",
				"We know who buys, why, when, and can predict their objections"),
			question("customerClarity2", "customer_clarity", 2, "Segment-Specific Go-to-Market",
				"Does your sales and marketing approach differ by customer segment?",
				"Same pitch and message for everyone",
				"Sales reps customize conversations in the moment",
				"We have 2-3 versions of our deck for different audiences",
				"Each segment has tailored messaging, collateral and outreach",
				"Full account-based strategy with measurable segment conversion"),
			question("messagingStrength1", "messaging_strength", 3, "Differentiation Clarity",
				`When prospects ask "How are you different?", can your entire team give the same clear answer?`,
				"Every conversation is different",
				"We have talking points but people interpret them differently",
				"Leadership is aligned, but the broader team varies",
				"Company-wide alignment on 2-3 differentiators with proof points",
				"Everyone delivers the same crisp differentiation backed by evidence"),
			question("messagingStrength2", "messaging_strength", 4, "Message Testing & Validation",
				"Have you tested your core messaging with customers, prospects, or partners to see what resonates?",
				"Not tested; messaging is internal opinion",
				"Informal feedback from a few people",
				"Some customer interviews without adjusting messaging",
				"Tested with 10+ external stakeholders and refined",
				"Continuously tested against conversions and optimized quarterly"),
			question("brandPositioning1", "brand_positioning", 5, "Category Leadership Evidence",
				"When someone searches for solutions in your category, do you appear in the top results, publications, or best-of lists?",
				"We rarely appear in searches or industry roundups",
				"We appear occasionally but inconsistently",
				"We show up in some industry content and local searches",
				"We rank well in search and appear in several publications",
				"Consistently featured in top results, analyst reports and industry media"),
			question("brandPositioning2", "brand_positioning", 6, "Competitive Win Documentation",
				"Do you track why you win (or lose) competitive deals, and does that data inform your strategy?",
				"We don't track wins and losses",
				"Anecdotes only, nothing documented",
				"We collect win/loss data but rarely analyze it",
				"We review win/loss reasons quarterly",
				"A formal win/loss program drives product, messaging and sales strategy"),
			question("corporateStory1", "corporate_story", 7, "Growth Narrative Clarity",
				"Can you articulate where your company is going (3-year targets) and show proof you'll get there?",
				"Vision without concrete growth targets",
				"Revenue goals with limited proof of execution",
				"3-year targets with some supporting metrics",
				"Clear targets backed by unit economics and retention",
				"A documented growth story with a record of hitting targets"),
			question("corporateStory2", "corporate_story", 8, "Founder/Leadership Story Credibility",
				"Does your leadership team's background and track record reinforce why you'll succeed?",
				"Leadership backgrounds aren't communicated",
				"Credentials mentioned but not tied to strategy",
				"Relevant experience not woven into the story",
				"Leadership story shows domain expertise and scale experience",
				"A documented record of building, scaling or exiting companies"),
			question("marketPresence1", "market_presence", 9, "Thought Leadership & PR",
				"In the past 12 months, how often has your company or leadership been featured in industry media, podcasts, or conferences?",
				"Zero appearances",
				"1-2 appearances or mentions",
				"3-5 appearances in industry media or regional conferences",
				"6-10 appearances including national stages or tier-1 outlets",
				"Recognized thought leaders with 10+ mentions and regular speaking slots"),
			question("marketPresence2", "market_presence", 10, "Sales Enablement & Asset Quality",
				`Do your sales and marketing materials make it easy for prospects to understand your value and say "yes"?`,
				"Materials are outdated or inconsistent",
				"Basic materials that aren't compelling",
				"Decent materials that don't differentiate",
				"Strong, current materials reps consistently use",
				"Exceptional materials that measurably shorten sales cycles"),
		},
	}
}

func question(id, domainID string, number int, title, prompt string, labels ...string) domain.Question {
	options := make([]domain.Option, 0, len(labels))
	for i, label := range labels {
		options = append(options, domain.Option{Value: i + 1, Label: label})
	}
	return domain.Question{
		ID:       id,
		DomainID: domainID,
		Number:   number,
		Title:    title,
		Prompt:   prompt,
		Options:  options,
	}
}
