package chatbot

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const (
	notSpecified     = "not specified"
	maxPromptHistory = 5
)

func orNotSpecified(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return notSpecified
	}
	return v
}

func joinOrNotSpecified(vs []string) string {
	return orNotSpecified(strings.Join(vs, ", "))
}

// buildPrompt renders the assistant prompt. prefs may be nil.
func buildPrompt(req types.ChatRequest, prefs *types.UserPreferences, recent []string) string {
	var likes, dislikes, cuisines, price string
	if prefs != nil {
		likes = strings.Join(prefs.LikedFoods, ", ")
		dislikes = strings.Join(prefs.DislikedFoods, ", ")
		cuisines = strings.Join(prefs.FavoriteCuisines, ", ")
		price = prefs.PreferredPriceRange
	}

	var b strings.Builder
	b.WriteString("You are MunchMate, a helpful restaurant recommendation assistant.\n\n")
	b.WriteString("IMPORTANT INSTRUCTIONS:\n")
	b.WriteString("- ONLY recommend restaurants, never recipes or cooking instructions\n")
	b.WriteString("- Keep your responses brief and to the point (1-3 sentences max unless listing specific restaurants)\n")
	b.WriteString("- Focus on specific restaurant suggestions when possible\n")
	b.WriteString("- If asked about a food item, recommend restaurants that serve it well\n\n")

	b.WriteString("User context:\n")
	fmt.Fprintf(&b, "- Location: %s\n", orNotSpecified(req.Location))
	fmt.Fprintf(&b, "- Cuisine interest: %s\n", orNotSpecified(req.Cuisine))
	fmt.Fprintf(&b, "- Dietary needs: %s\n", orNotSpecified(req.Dietary))
	fmt.Fprintf(&b, "- Likes: %s\n", orNotSpecified(likes))
	fmt.Fprintf(&b, "- Dislikes: %s\n", orNotSpecified(dislikes))
	fmt.Fprintf(&b, "- Favorite cuisines: %s\n", orNotSpecified(cuisines))
	fmt.Fprintf(&b, "- Preferred price range: %s\n", orNotSpecified(price))
	if len(recent) > 0 {
		if len(recent) > maxPromptHistory {
			recent = recent[:maxPromptHistory]
		}
		fmt.Fprintf(&b, "- Previously viewed restaurants: %s\n", joinOrNotSpecified(recent))
	}

	if instr := strings.TrimSpace(req.Instruction); instr != "" {
		fmt.Fprintf(&b, "\nSpecial instruction: %s\n", instr)
	}
	fmt.Fprintf(&b, "\nUser query: %q", req.Message)
	return b.String()
}
