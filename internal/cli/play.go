package cli

import (
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"math-quiz-service/internal/app"
	"math-quiz-service/internal/config"
	"math-quiz-service/internal/infra/memory"
	"math-quiz-service/internal/tui"
)

// NewPlayCmd runs a quiz in the terminal against the configured leaderboard.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			// log lines would tear the alternate screen
			log.SetOutput(io.Discard)

			b, err := newBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			service := app.NewQuizService(memory.NewSessionStore(), b.board, app.NewGenerator(), quizOptions(cfg))
			defer service.Close()
			model := tui.NewModel(service)
			defer model.Close()

			program := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("failed to run TUI: %w", err)
			}
			return nil
		},
	}
}
