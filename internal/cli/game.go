package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/avalon/internal/api/request"
	"github.com/mcoot/avalon/internal/api/response"
	"github.com/mcoot/avalon/internal/model"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameJoinCmd())
	cmd.AddCommand(newGameStartCmd())
	cmd.AddCommand(newGameStateCmd())
	cmd.AddCommand(newGameAssassinateCmd())

	return cmd
}

func newGameCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new game and save your session",
		RunE: func(cmd *cobra.Command, args []string) error {
			playerName := strings.TrimSpace(name)

			var result response.CreateGameResponse
			if err := client.Post("/api/v1/games", request.CreateGameRequest{PlayerName: playerName}, &result); err != nil {
				return err
			}

			if err := cfg.SaveSession(Session{GameID: result.GameID, PlayerID: result.PlayerID, PlayerName: playerName}); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Your player name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newGameJoinCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "join <game_id>",
		Short: "Join a game and save your session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID := strings.ToUpper(args[0])
			playerName := strings.TrimSpace(name)

			var result response.JoinGameResponse
			if err := client.Post(fmt.Sprintf("/api/v1/games/%s/players", gameID), request.JoinGameRequest{PlayerName: playerName}, &result); err != nil {
				return err
			}

			if err := cfg.SaveSession(Session{GameID: gameID, PlayerID: result.PlayerID, PlayerName: playerName}); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Your player name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newGameStartCmd() *cobra.Command {
	var roles, order []string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the game (creator only)",
		Long: `Start the game with the given roles.

The seating order defaults to the order players joined.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cfg.LoadSession()
			if err != nil {
				return err
			}

			if len(order) == 0 {
				view, err := fetchState(session)
				if err != nil {
					return err
				}
				order = view.Players
			}

			req := request.StartGameRequest{
				Identity:    identity(session),
				RoleList:    upper(roles),
				PlayerOrder: order,
			}
			if err := client.Post(fmt.Sprintf("/api/v1/games/%s/start", session.GameID), req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Game started")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roles, "roles", nil, "Comma-separated roles, one per player (e.g. MERLIN,ASSASSIN,LOYAL_SERVANT)")
	cmd.Flags().StringSliceVar(&order, "order", nil, "Comma-separated seating order")
	_ = cmd.MarkFlagRequired("roles")

	return cmd
}

func newGameStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the game as your player sees it",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cfg.LoadSession()
			if err != nil {
				return err
			}

			view, err := fetchState(session)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*view)
			return nil
		},
	}
}

func newGameAssassinateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assassinate <target>",
		Short: "Name the player you believe is Merlin (assassin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cfg.LoadSession()
			if err != nil {
				return err
			}

			req := request.AssassinateRequest{Identity: identity(session), Target: args[0]}
			if err := client.Post(fmt.Sprintf("/api/v1/games/%s/assassination", session.GameID), req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Assassinated " + args[0])
			return nil
		},
	}
}

// fetchState rejoins by player id so a stale game id in the session does not matter
func fetchState(session *Session) (*model.GameView, error) {
	var view model.GameView
	if err := client.Get(fmt.Sprintf("/api/v1/players/%s/state", session.PlayerID), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func identity(session *Session) request.Identity {
	return request.Identity{PlayerID: session.PlayerID, PlayerName: session.PlayerName}
}

func upper(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}
