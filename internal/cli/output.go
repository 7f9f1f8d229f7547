package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mcoot/avalon/internal/api/response"
	"github.com/mcoot/avalon/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.CreateGameResponse:
		fmt.Printf("Game: %s\n", v.GameID)
		fmt.Printf("Player: %s\n", v.PlayerID)
	case response.JoinGameResponse:
		fmt.Printf("Player: %s\n", v.PlayerID)
	case model.GameView:
		o.printGameView(v)
	case response.HealthResponse:
		fmt.Printf("Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printGameView(g model.GameView) {
	fmt.Printf("Game: %s\n", g.ID)
	fmt.Printf("Status: %s\n", g.Status)
	fmt.Printf("Creator: %s\n", g.Creator)
	fmt.Printf("Players: %s\n", strings.Join(g.Players, ", "))

	if g.MyRole != "" {
		fmt.Printf("\nYou are %s, playing %s\n", g.MyName, g.MyRole)
	} else {
		fmt.Printf("\nYou are %s\n", g.MyName)
	}
	if len(g.Knowledge.Players) > 0 {
		fmt.Println("You know:")
		for _, p := range g.Knowledge.Players {
			fmt.Printf("  - %s (%s)\n", p.Name, p.Alignment)
		}
	}

	if len(g.Roles) > 0 {
		roles := make([]string, 0, len(g.Roles))
		for role, alignment := range g.Roles {
			roles = append(roles, fmt.Sprintf("%s (%s)", role, alignment))
		}
		sort.Strings(roles)
		fmt.Printf("Roles in play: %s\n", strings.Join(roles, ", "))
	}

	if len(g.QuestHistory) > 0 {
		fmt.Println("\nHistory:")
		for _, q := range g.QuestHistory {
			fmt.Printf("  Round %d: %s (led by %s: %s)\n", q.RoundNumber, q.Status, q.Leader, strings.Join(q.Members, ", "))
		}
	}

	if q := g.CurrentQuest; q != nil {
		fmt.Printf("\nQuest %s: round %d, attempt %d\n", q.ID, q.RoundNumber, q.AttemptNumber)
		fmt.Printf("  Leader: %s\n", q.Leader)
		fmt.Printf("  Size: %d\n", q.Size)
		fmt.Printf("  Status: %s\n", q.Status)
		if len(q.Members) > 0 {
			fmt.Printf("  Members: %s\n", strings.Join(q.Members, ", "))
		}
		switch q.Status {
		case model.QuestStatusVotingForProposal:
			fmt.Printf("  Votes outstanding: %d\n", q.RemainingVotes)
		case model.QuestStatusVotingInQuest:
			fmt.Printf("  Results outstanding: %d\n", q.RemainingResults)
		}
	}

	if g.AssassinationTarget != "" {
		fmt.Printf("\nAssassinated: %s\n", g.AssassinationTarget)
	}
}
