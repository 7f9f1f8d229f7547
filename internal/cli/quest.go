package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/avalon/internal/api/request"
	"github.com/mcoot/avalon/internal/model"
)

var errNoCurrentQuest = errors.New("the game has no current quest")

func newQuestCmd() *cobra.Command {
	var questID string

	cmd := &cobra.Command{
		Use:   "quest",
		Short: "Quest commands",
		Long: `Quest commands act on the current quest attempt unless --quest is given.`,
	}

	cmd.PersistentFlags().StringVar(&questID, "quest", "", "Quest attempt id (default: the current quest)")

	cmd.AddCommand(newQuestProposeCmd(&questID))
	cmd.AddCommand(newQuestVoteCmd(&questID, "approve", "Approve the proposed quest", "proposal/votes", int(model.VoteApprove), "Approved"))
	cmd.AddCommand(newQuestVoteCmd(&questID, "reject", "Reject the proposed quest", "proposal/votes", int(model.VoteReject), "Rejected"))
	cmd.AddCommand(newQuestVoteCmd(&questID, "succeed", "Play a success card on the quest", "votes", int(model.VoteSuccess), "Played success"))
	cmd.AddCommand(newQuestVoteCmd(&questID, "fail", "Play a fail card on the quest", "votes", int(model.VoteFail), "Played fail"))

	return cmd
}

func newQuestProposeCmd(questID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "propose <member>...",
		Short: "Propose quest members (leader only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cfg.LoadSession()
			if err != nil {
				return err
			}
			id, err := resolveQuest(session, *questID)
			if err != nil {
				return err
			}

			req := request.ProposeQuestRequest{Identity: identity(session), Members: args}
			if err := client.Post(fmt.Sprintf("/api/v1/quests/%s/proposal", id), req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Quest proposed")
			return nil
		},
	}
}

func newQuestVoteCmd(questID *string, use, short, path string, vote int, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cfg.LoadSession()
			if err != nil {
				return err
			}
			id, err := resolveQuest(session, *questID)
			if err != nil {
				return err
			}

			req := request.VoteRequest{Identity: identity(session), Vote: vote}
			if err := client.Post(fmt.Sprintf("/api/v1/quests/%s/%s", id, path), req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(done)
			return nil
		},
	}
}

func resolveQuest(session *Session, questID string) (string, error) {
	if questID != "" {
		return questID, nil
	}
	view, err := fetchState(session)
	if err != nil {
		return "", err
	}
	if view.CurrentQuest == nil {
		return "", errNoCurrentQuest
	}
	return string(view.CurrentQuest.ID), nil
}
