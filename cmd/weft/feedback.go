package main

import (
	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

var (
	feedbackSuccessRate float64
	feedbackRating      float64
	feedbackUsed        bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback ID",
	Short: "Record usage feedback for an entity",
	Long: `Record usage feedback on one entity: an observed success rate, a
rating, or a usage increment. Feedback touches only these fields; the
build-derived metadata is never modified.

Examples:
  weft feedback slack-notify --used
  weft feedback slack-notify --success-rate 0.93 --rating 4.5`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().Float64Var(&feedbackSuccessRate, "success-rate", -1, "Observed success rate in [0,1]")
	feedbackCmd.Flags().Float64Var(&feedbackRating, "rating", -1, "Rating in [0,5]")
	feedbackCmd.Flags().BoolVar(&feedbackUsed, "used", false, "Increment the usage counter")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	var patch graph.MetadataPatch
	if cmd.Flag("success-rate").Changed {
		patch.SuccessRate = &feedbackSuccessRate
	}
	if cmd.Flag("rating").Changed {
		patch.Rating = &feedbackRating
	}
	if feedbackUsed {
		patch.UsageDelta = 1
	}
	if patch.IsZero() {
		return types.NewValidationError("nothing to record: pass --used, --success-rate, or --rating")
	}

	if err := rt.store.UpdateEntityMetadata(ctx, types.ID(args[0]), patch); err != nil {
		return err
	}
	return formatter(cmd).PrintSuccess("feedback recorded for " + args[0])
}
