package admin

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/repository"
	"github.com/cloo-solutions/knowctx/internal/service"
)

// ingestFile is the YAML document accepted by the ingest command.
type ingestFile struct {
	OrgID      string               `yaml:"org_id"`
	Items      []service.IngestItem `yaml:"items"`
	Structures []structureEntry     `yaml:"structures"`
}

type structureEntry struct {
	ID          string   `yaml:"id"`
	Platform    string   `yaml:"platform"`
	Intent      string   `yaml:"intent"`
	FunnelStage string   `yaml:"funnel_stage"`
	CTAType     string   `yaml:"cta_type"`
	Sections    []string `yaml:"sections"`
	Confidence  float64  `yaml:"confidence"`
	RawText     string   `yaml:"raw_text"`
}

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.yaml>",
		Short: "Load knowledge items, facts and canonical structures",
		Long: `Load a YAML file of knowledge items, business facts and canonical structures.
Item bodies are split into chunks and embedded; annotated chunks are stored as given.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("org", "", "Organization id (overrides org_id in the file)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	org, _ := cmd.Flags().GetString("org")
	file, structures, err := parseIngestFile(data, org)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	ingest := service.NewIngestService(repository.NewTxRunner(rt.pool), rt.embedder, log.Named("ingest"))
	stats, err := ingest.Ingest(ctx, file.OrgID, file.Items)
	if err != nil {
		return err
	}

	structureRepo := repository.NewStructureRepository(rt.pool)
	for i := range structures {
		if err := structureRepo.CreateCanonical(ctx, &structures[i]); err != nil {
			return fmt.Errorf("structure %q: %w", structures[i].ID, err)
		}
	}

	log.Info("ingest complete",
		zap.String("org_id", file.OrgID),
		zap.Int("items", stats.Items),
		zap.Int("chunks", stats.Chunks),
		zap.Int("facts", stats.Facts),
		zap.Int("without_vector", stats.Degraded),
		zap.Int("structures", len(structures)))
	fmt.Printf("Ingested %d items (%d chunks, %d facts) and %d structures for %s\n",
		stats.Items, stats.Chunks, stats.Facts, len(structures), file.OrgID)
	return nil
}

func parseIngestFile(data []byte, orgOverride string) (ingestFile, []domain.StructureCandidate, error) {
	var file ingestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, nil, fmt.Errorf("failed to parse ingest file: %w", err)
	}
	if orgOverride != "" {
		file.OrgID = orgOverride
	}
	if file.OrgID == "" {
		return file, nil, domain.ErrMissingOrgID
	}

	structures := make([]domain.StructureCandidate, 0, len(file.Structures))
	for _, s := range file.Structures {
		if s.ID == "" || len(s.Sections) == 0 {
			return file, nil, fmt.Errorf("structure %q needs id and sections: %w", s.ID, domain.ErrMissingRequiredField)
		}
		sc := domain.StructureCandidate{
			ID:         s.ID,
			OrgID:      file.OrgID,
			Platform:   s.Platform,
			CTAType:    s.CTAType,
			Sections:   s.Sections,
			Confidence: domain.Clamp01(s.Confidence),
			RawText:    s.RawText,
		}
		if s.Intent != "" {
			intent, ok := domain.ParseIntent(s.Intent)
			if !ok {
				return file, nil, fmt.Errorf("structure %q: %w", s.ID, domain.ErrInvalidIntent)
			}
			sc.Intent = intent
		}
		if s.FunnelStage != "" {
			funnel, ok := domain.ParseFunnelStage(s.FunnelStage)
			if !ok {
				return file, nil, fmt.Errorf("structure %q: %w", s.ID, domain.ErrInvalidFunnelStage)
			}
			sc.FunnelStage = funnel
		}
		structures = append(structures, sc)
	}
	return file, structures, nil
}
