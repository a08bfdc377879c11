package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm"
)

var (
	flagAnswerModel   string
	flagAnswerModelID string
	flagAnswerRole    string
	flagAnswerDevice  string
)

var answerCmd = &cobra.Command{
	Use:   "answer <question>",
	Short: "Answer a question from retrieved wiki passages",
	Long: fmt.Sprintf(`Retrieves the closest passages and asks the selected model.
Models: %s. A failed generation prints an empty answer.`, strings.Join(llm.Variants(), ", ")),
	Args: cobra.MinimumNArgs(1),
	RunE: runAnswer,
}

func init() {
	answerCmd.Flags().StringVar(&flagAnswerModel, "model", "", "Answer provider (required)")
	answerCmd.Flags().StringVar(&flagAnswerModelID, "model-id", "", "Provider model identifier (default LLM_MODEL)")
	answerCmd.Flags().StringVar(&flagAnswerRole, "role", "", "Persona of the answer")
	answerCmd.Flags().StringVar(&flagAnswerDevice, "device", "", "Compute device for the local model: cpu, gpu, auto")
	_ = answerCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(answerCmd)
}

func runAnswer(cmd *cobra.Command, args []string) error {
	role, err := domain.ParseRole(flagAnswerRole)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, _, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	llmCfg := app.Config.LLM
	llmCfg.Variant = flagAnswerModel
	if flagAnswerModelID != "" {
		llmCfg.Model = flagAnswerModelID
	}
	if flagAnswerDevice != "" {
		llmCfg.Device = flagAnswerDevice
	}

	answerer, err := app.NewAnswerer(ctx, llmCfg)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	printAnswer(cmd.OutOrStdout(), answerer.GenerateAnswer(ctx, question, role))
	return nil
}

func printAnswer(w io.Writer, answer domain.Answer) {
	fmt.Fprintf(w, "Question: %s\nAnswer: %s\n", answer.Question, answer.Text)
}
