package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/docgrade/docgrade/internal/assess"
	"github.com/docgrade/docgrade/internal/config"
	"github.com/docgrade/docgrade/internal/invoker"
	"github.com/docgrade/docgrade/internal/metrics"
	"github.com/docgrade/docgrade/internal/schema"
	"github.com/spf13/cobra"
)

var (
	assessSchemaPath     string
	assessExtractionPath string
	assessDocumentPath   string
	assessImagePaths     []string
	assessOutputPath     string
	assessPromptPath     string

	assessSimpleBatch int
	assessListBatch   int
	assessWorkers     int
	assessAttempts    int
	assessDeadline    time.Duration
	assessThreshold   float64
	assessFlat        bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess an extraction result against its source document",
	Long: `Assess grades every extracted field of a document. The attribute schema
comes from a YAML class definition, the extraction result from a JSON file,
and the document content from a text file plus optional page images.

Examples:
  docgrade assess -s bank-statement.yaml -e extraction.json -d statement.txt
  docgrade assess -s invoice.yaml -e out.json -d invoice.txt --image p1.png --image p2.png -o graded.json
  docgrade assess -s w2.yaml -e out.json -d w2.txt --workers 8 --deadline 2m`,
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVarP(&assessSchemaPath, "schema", "s", "", "class definition YAML file (required)")
	assessCmd.Flags().StringVarP(&assessExtractionPath, "extraction", "e", "", "extraction result JSON file (required)")
	assessCmd.Flags().StringVarP(&assessDocumentPath, "document", "d", "", "document text file (required)")
	assessCmd.Flags().StringArrayVar(&assessImagePaths, "image", nil, "page image PNG file (repeatable)")
	assessCmd.Flags().StringVarP(&assessOutputPath, "output", "o", "", "write result JSON here instead of stdout")
	assessCmd.Flags().StringVar(&assessPromptPath, "prompt", "", "task prompt template file overriding the built-in one")

	assessCmd.Flags().IntVar(&assessSimpleBatch, "simple-batch-size", assess.DefaultSimpleBatchSize, "root-level simple attributes per task")
	assessCmd.Flags().IntVar(&assessListBatch, "list-batch-size", assess.DefaultListBatchSize, "consecutive list items per task")
	assessCmd.Flags().IntVar(&assessWorkers, "workers", assess.DefaultMaxWorkers, "maximum concurrent invocations")
	assessCmd.Flags().IntVar(&assessAttempts, "max-attempts", assess.DefaultMaxAttempts, "attempts per task when throttled")
	assessCmd.Flags().DurationVar(&assessDeadline, "deadline", 0, "stop dispatching new tasks after this long (0 = none)")
	assessCmd.Flags().Float64Var(&assessThreshold, "threshold", 0, "global confidence threshold (0 = none)")
	assessCmd.Flags().BoolVar(&assessFlat, "single-task", false, "assess everything in one call instead of granular tasks")

	_ = assessCmd.MarkFlagRequired("schema")
	_ = assessCmd.MarkFlagRequired("extraction")
	_ = assessCmd.MarkFlagRequired("document")
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	class, err := schema.LoadClass(assessSchemaPath)
	if err != nil {
		return err
	}

	extractionData, err := os.ReadFile(assessExtractionPath)
	if err != nil {
		return fmt.Errorf("read extraction file: %w", err)
	}
	var extraction map[string]any
	if err := json.Unmarshal(extractionData, &extraction); err != nil {
		return fmt.Errorf("parse extraction file: %w", err)
	}

	docText, err := os.ReadFile(assessDocumentPath)
	if err != nil {
		return fmt.Errorf("read document file: %w", err)
	}
	doc := assess.Document{Text: string(docText)}
	for _, path := range assessImagePaths {
		img, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image %s: %w", path, err)
		}
		doc.Images = append(doc.Images, img)
	}

	runCfg := assess.Config{
		Enabled:             true,
		Granular:            !assessFlat,
		SimpleBatchSize:     assessSimpleBatch,
		ListBatchSize:       assessListBatch,
		MaxWorkers:          assessWorkers,
		MaxAttempts:         assessAttempts,
		Deadline:            assessDeadline,
		AttributeThresholds: schema.Thresholds(class.Attributes),
	}
	if assessThreshold > 0 {
		runCfg.GlobalThreshold = &assessThreshold
	}
	if assessPromptPath != "" {
		prompt, err := os.ReadFile(assessPromptPath)
		if err != nil {
			return fmt.Errorf("read prompt template: %w", err)
		}
		runCfg.TaskPrompt = string(prompt)
	}

	inv, err := newInvoker(ctx, cfg)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	engine := assess.NewEngine(inv, collector)
	result, err := engine.Run(ctx, doc, class.Attributes, extraction, runCfg)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if assessOutputPath != "" {
		if err := os.WriteFile(assessOutputPath, out, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	} else {
		fmt.Println(string(out))
	}

	printSummary(result.Metadata, collector.Snapshot())
	return nil
}

// newInvoker builds the configured inference backend, mirroring provider
// selection across Bedrock and the langchaingo providers.
func newInvoker(ctx context.Context, cfg config.Config) (invoker.Invoker, error) {
	switch invoker.Provider(cfg.Provider) {
	case invoker.ProviderBedrock:
		return invoker.NewBedrock(ctx, cfg.Model)
	case invoker.ProviderAnthropic:
		return invoker.NewLangchain(invoker.ProviderAnthropic, cfg.Model, cfg.AnthropicAPIKey, "")
	case invoker.ProviderOpenAI:
		return invoker.NewLangchain(invoker.ProviderOpenAI, cfg.Model, cfg.OpenAIAPIKey, "")
	case invoker.ProviderOllama:
		return invoker.NewLangchain(invoker.ProviderOllama, cfg.Model, "", cfg.OllamaHost)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func printSummary(md assess.RunMetadata, snap metrics.Snapshot) {
	fmt.Fprintf(os.Stderr, "Tasks: %d total, %d successful, %d failed (%.1fs)\n",
		md.TasksTotal, md.TasksSucceeded, md.TasksFailed, md.Elapsed.Seconds())

	printOp := func(name string, s *metrics.InvocationSnapshot) {
		if s == nil {
			return
		}
		fmt.Fprintf(os.Stderr, "  %-13s %3d calls, avg %6.0fms, tokens in/out %d/%d\n",
			name, s.Count, s.AvgTimeMs, s.TotalInputTokens, s.TotalOutputTokens)
	}
	printOp("simple batch", snap.SimpleBatch)
	printOp("group", snap.Group)
	printOp("list item", snap.ListItem)
	printOp("document", snap.Document)
}
