package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/spf13/cobra"

	"github.com/apresai/sprintkit/internal/history/memstore"
	"github.com/apresai/sprintkit/internal/hmw"
	"github.com/apresai/sprintkit/internal/interview"
	"github.com/apresai/sprintkit/internal/llm"
	"github.com/apresai/sprintkit/internal/llm/anyllm"
	"github.com/apresai/sprintkit/internal/llm/claude"
	"github.com/apresai/sprintkit/internal/llm/nova"
	"github.com/apresai/sprintkit/internal/observability"
	"github.com/apresai/sprintkit/internal/persona"
	"github.com/apresai/sprintkit/internal/progress"
	"github.com/apresai/sprintkit/internal/report"
	"github.com/apresai/sprintkit/internal/sprint"
	"github.com/apresai/sprintkit/internal/structgen"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "sprintkit",
	Short: "Run automated design sprints: expert panels, interviews, and How Might We questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		flagTUI = true
		return runSprint(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sprintkit %s\n", Version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a design sprint for a problem statement",
	RunE:  runSprint,
}

var showCmd = &cobra.Command{
	Use:   "show <report.json>",
	Short: "Print the experts, interviews, and HMW questions from a saved sprint report",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var (
	flagGoal            string
	flagExperts         int
	flagCycles          int
	flagProvider        string
	flagModel           string
	flagOutput          string
	flagVerbose         bool
	flagTUI             bool
	flagTranscript      bool
	flagAnthropicAPIKey string
	flagOpenAIAPIKey    string
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
	runCmd.Flags().StringVarP(&flagGoal, "goal", "g", "", "Design sprint goal or problem statement")
	runCmd.Flags().IntVarP(&flagExperts, "experts", "e", 4, "Number of expert personas to generate and interview (1-10)")
	runCmd.Flags().IntVarP(&flagCycles, "cycles", "c", 3, "Question/answer cycles per interview (1-10)")
	runCmd.Flags().StringVarP(&flagProvider, "provider", "P", "claude", "LLM provider: claude, nova, openai, anthropic, gemini, ollama, mistral, groq")
	runCmd.Flags().StringVarP(&flagModel, "model", "m", "", "Model alias or ID for the chosen provider (e.g. haiku, sonnet, gpt-4o-mini)")
	runCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Report output path (JSON); empty = auto-named sprint-<timestamp>.json")
	runCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging")
	runCmd.Flags().BoolVarP(&flagTUI, "tui", "t", false, "Interactive setup wizard for sprint options")
	runCmd.Flags().BoolVarP(&flagTranscript, "transcript", "T", false, "Print full interview transcripts after the run")
	runCmd.Flags().StringVar(&flagAnthropicAPIKey, "anthropic-api-key", "", "Anthropic API key (overrides ANTHROPIC_API_KEY env var)")
	runCmd.Flags().StringVar(&flagOpenAIAPIKey, "openai-api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
}

func Execute() error {
	return rootCmd.Execute()
}

// validProviders are the accepted --provider values. claude and nova use the
// native SDK providers; the rest route through any-llm-go.
var validProviders = map[string]bool{
	"claude": true, "nova": true,
	"openai": true, "anthropic": true, "gemini": true,
	"ollama": true, "mistral": true, "groq": true,
}

// defaultModels maps any-llm provider names to a sensible default model.
var defaultModels = map[string]string{
	"openai":  "gpt-4o-mini",
	"ollama":  "mistral",
	"mistral": "mistral-small-latest",
	"gemini":  "gemini-2.0-flash",
	"groq":    "llama-3.3-70b-versatile",
}

func runSprint(cmd *cobra.Command, args []string) error {
	// Run interactive setup if requested
	if flagTUI {
		if err := runInteractiveSetup(); err != nil {
			return err
		}
	}

	// Validate flags
	if flagGoal == "" {
		return fmt.Errorf("--goal (-g) is required")
	}
	if flagExperts < 1 || flagExperts > 10 {
		return fmt.Errorf("invalid experts count %d: must be between 1 and 10", flagExperts)
	}
	if flagCycles < 1 || flagCycles > 10 {
		return fmt.Errorf("invalid cycles count %d: must be between 1 and 10", flagCycles)
	}
	if !validProviders[flagProvider] {
		return fmt.Errorf("invalid provider %q: must be claude, nova, openai, anthropic, gemini, ollama, mistral, or groq", flagProvider)
	}

	if err := checkAPIKeys(flagProvider); err != nil {
		return err
	}

	logger := observability.InitLogger(flagVerbose)

	provider, err := buildProvider(flagProvider, flagModel)
	if err != nil {
		return err
	}

	outputPath := flagOutput
	if outputPath == "" {
		outputPath = time.Now().Format("sprint-20060102-1504.json")
	}

	gen := structgen.NewClient(provider)
	deps := sprint.Deps{
		Personas:   persona.NewGenerator(gen, nil, logger),
		Interviews: interview.NewEngine(gen, memstore.New(), nil, logger),
		HMW:        hmw.NewSynthesizer(gen),
		Log:        logger,
	}

	opts := sprint.Options{
		Goal:    flagGoal,
		Experts: flagExperts,
		Cycles:  flagCycles,
	}

	// Wire up progress bar when not in verbose mode. The complete event is
	// held back until the report file exists so Finish can name it.
	var r *progress.BarRenderer
	var finalEvent progress.Event
	if !flagVerbose {
		r = progress.NewBarRenderer(os.Stdout)
		opts.Progress = func(e progress.Event) {
			if e.Stage == progress.StageComplete {
				finalEvent = e
				return
			}
			r.Handle(e)
		}
	}

	rep, err := sprint.Run(cmd.Context(), deps, opts)
	if err != nil {
		return err
	}

	if err := report.Save(rep, outputPath); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if r != nil {
		finalEvent.ReportFile = outputPath
		r.Handle(finalEvent)
		r.Finish()
	}

	printSummary(os.Stdout, rep, flagTranscript)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	rep, err := report.Load(args[0])
	if err != nil {
		return err
	}
	printSummary(os.Stdout, rep, true)
	return nil
}

// printSummary prints the expert panel and HMW questions, and optionally the
// full interview transcripts.
func printSummary(out *os.File, rep *report.Report, transcripts bool) {
	if len(rep.Experts) == 0 {
		fmt.Fprintln(out, "\nNo experts found.")
		return
	}

	fmt.Fprintf(out, "\nGoal: %s\n", rep.Goal)

	fmt.Fprintln(out, "\nExpert panel:")
	for _, e := range rep.Experts {
		fmt.Fprintf(out, "  %-24s %s\n", e.Name, e.Description)
	}

	if transcripts {
		names := map[string]string{}
		for _, e := range rep.Experts {
			names[e.ID] = e.Name
		}
		for _, iv := range rep.Interviews {
			fmt.Fprintf(out, "\nInterview with %s:\n", names[iv.ExpertID])
			for _, t := range iv.Turns {
				speaker := "Interviewer"
				if t.Role == interview.RoleAnswer {
					speaker = names[iv.ExpertID]
				}
				fmt.Fprintf(out, "  %s: %s\n", speaker, t.Text)
			}
		}
	}

	if rep.QuestionCount() > 0 {
		fmt.Fprintln(out, "\nHow Might We questions:")
		for _, b := range rep.Batches {
			for _, q := range b.Questions {
				fmt.Fprintf(out, "  [%-10s] %s\n", q.Role, q.Question)
			}
		}
	}
	fmt.Fprintln(out)
}

// buildProvider constructs the llm.Provider for a provider name and model.
func buildProvider(name, model string) (llm.Provider, error) {
	switch name {
	case "claude":
		var opts []option.RequestOption
		if flagAnthropicAPIKey != "" {
			opts = append(opts, option.WithAPIKey(flagAnthropicAPIKey))
		}
		return claude.New(model, opts...), nil
	case "nova":
		return nova.New(model)
	default:
		var opts []anyllmlib.Option
		if name == "anthropic" && flagAnthropicAPIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(flagAnthropicAPIKey))
		}
		if name == "openai" && flagOpenAIAPIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(flagOpenAIAPIKey))
		}
		if model == "" {
			model = defaultModels[name]
		}
		if model == "" {
			return nil, fmt.Errorf("--model is required for provider %q", name)
		}
		return anyllm.New(name, model, opts...)
	}
}

func checkAPIKeys(providerName string) error {
	hasKey := func(envVar, flagVal string) bool {
		return flagVal != "" || os.Getenv(envVar) != ""
	}

	var missing []string
	switch providerName {
	case "claude", "anthropic":
		if !hasKey("ANTHROPIC_API_KEY", flagAnthropicAPIKey) {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case "openai":
		if !hasKey("OPENAI_API_KEY", flagOpenAIAPIKey) {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "gemini":
		if !hasKey("GEMINI_API_KEY", "") {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "mistral":
		if !hasKey("MISTRAL_API_KEY", "") {
			missing = append(missing, "MISTRAL_API_KEY")
		}
	case "groq":
		if !hasKey("GROQ_API_KEY", "") {
			missing = append(missing, "GROQ_API_KEY")
		}
	case "nova", "ollama":
		// nova uses the AWS credential chain; ollama is local and needs no key
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variable(s): %s\nYou can also pass these via --anthropic-api-key or --openai-api-key flags", strings.Join(missing, ", "))
	}
	return nil
}
