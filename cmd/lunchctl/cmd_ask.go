package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/lunchbot/internal/app"
	"github.com/ashureev/lunchbot/internal/domain"
)

var askParams map[string]string

// askCmd sends one utterance through the gateway.
var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the reply",
	Long: `Send one message through the full pipeline: admission, intent
resolution, weather, recommendation and composition.

Examples:
  lunchctl ask "점심 추천해줘"
  lunchctl ask "다른 거" --user alice
  lunchctl ask "뭐 먹지" --param weather=rainy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringToStringVarP(&askParams, "param", "p", nil, "Skill parameters (key=value)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	params := make(map[string]any, len(askParams))
	for k, v := range askParams {
		params[k] = v
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		reply := a.Gateway.Handle(ctx, domain.Utterance{
			UserID:     userID,
			Text:       text,
			ReceivedAt: time.Now(),
		}, params)

		if asJSON {
			if err := printJSON(cmd, reply); err != nil {
				return err
			}
			return deniedError(reply)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, reply.Text)
		if len(reply.QuickReplies) > 0 {
			labels := make([]string, 0, len(reply.QuickReplies))
			for _, q := range reply.QuickReplies {
				labels = append(labels, "["+q.Label+"]")
			}
			fmt.Fprintln(out, strings.Join(labels, " "))
		}
		if verbose {
			fmt.Fprintf(out, "intent=%s path=%s\n", reply.Intent, reply.Path)
		}
		return deniedError(reply)
	})
}

// deniedError makes a rate-limited ask exit non-zero.
func deniedError(reply domain.Reply) error {
	if reply.Path == domain.PathDenied {
		return fmt.Errorf("user %s: %w", userID, domain.ErrAdmissionDenied)
	}
	return nil
}
