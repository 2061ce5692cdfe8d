package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Send a test prompt to the configured provider",
	Long: `Send a short test prompt and print the reply.

Without flags the stored settings of the default owner and the
server key from GOOGLE_GEMINI_API_KEY are used.`,
	RunE: runCheck,
}

var (
	checkProvider string
	checkModel    string
	checkKey      string
)

func init() {
	checkCmd.Flags().StringVar(&checkProvider, "provider", "", "Provider to test: gemini or openrouter")
	checkCmd.Flags().StringVar(&checkModel, "model", "", "Model id, provider default when empty")
	checkCmd.Flags().StringVar(&checkKey, "key", "", "API key, overrides the configured one")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout)
	defer cancel()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	raw := &domain.RawSettings{Provider: checkProvider, Model: checkModel}
	if p, err := domain.ParseProvider(checkProvider); err == nil && p == domain.ProviderOpenRouter {
		raw.OpenRouterAPIKey = checkKey
	} else {
		raw.GeminiAPIKey = checkKey
	}

	reply, err := a.coach.TestConnection(domain.WithOwner(ctx, domain.DefaultOwner), raw)
	if err != nil {
		if e, ok := domain.AsError(err); ok {
			fmt.Fprintf(os.Stderr, "%s: %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("connection test failed: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "model:  %s\n", reply.Model)
	fmt.Fprintf(out, "tokens: %d\n", reply.Usage.TotalTokens)
	fmt.Fprintf(out, "reply:  %s\n", reply.Message)
	return nil
}
