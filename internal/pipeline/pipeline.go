// Package pipeline orchestrates the daily lead pass and the engagement
// reconcile pass. Item failures are isolated: one bad lead never aborts the
// run, it is counted in the run summary and skipped.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/outboundlabs/leadflow/internal/dedupe"
	"github.com/outboundlabs/leadflow/internal/enrich"
	"github.com/outboundlabs/leadflow/internal/model"
	"github.com/outboundlabs/leadflow/internal/outreach"
	"github.com/outboundlabs/leadflow/internal/personalize"
	"github.com/outboundlabs/leadflow/internal/resilience"
	"github.com/outboundlabs/leadflow/internal/scorer"
	"github.com/outboundlabs/leadflow/internal/source"
	"github.com/outboundlabs/leadflow/internal/store"
	"github.com/outboundlabs/leadflow/pkg/instantly"
)

// Sourcer discovers candidate companies.
type Sourcer interface {
	Discover(ctx context.Context) (*source.Report, error)
}

// Enricher resolves a company to firmographics and a contact.
type Enricher interface {
	Enrich(ctx context.Context, company, website string) (*enrich.Result, error)
}

// Personalizer generates per-lead copy.
type Personalizer interface {
	Generate(ctx context.Context, lead model.Lead) (*personalize.Copy, error)
}

// Campaigner is the campaign provider surface the pipeline needs.
type Campaigner interface {
	ResolveCampaign(ctx context.Context, sequences []instantly.Sequence) (string, error)
	Enqueue(ctx context.Context, campaignID string, lead model.Lead, vars map[string]string) (string, error)
	FetchEngagement(ctx context.Context, campaignID string) ([]outreach.EngagementRecord, error)
}

// Config tunes a pipeline run.
type Config struct {
	DailyTarget int
	DailyCap    int
	Scoring     scorer.Config
	Sequences   []instantly.Sequence

	// DryRun runs discovery, enrichment, and scoring only. Nothing is
	// written to the store or the campaign provider.
	DryRun bool
}

// Pipeline wires the pipeline stages together.
type Pipeline struct {
	store        store.Store
	sourcer      Sourcer
	enricher     Enricher
	personalizer Personalizer
	campaigner   Campaigner
	cfg          Config
}

// New creates a Pipeline with all dependencies.
func New(
	st store.Store,
	sourcer Sourcer,
	enricher Enricher,
	personalizer Personalizer,
	campaigner Campaigner,
	cfg Config,
) *Pipeline {
	if cfg.DailyTarget <= 0 {
		cfg.DailyTarget = 20
	}
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = 10
	}
	return &Pipeline{
		store:        st,
		sourcer:      sourcer,
		enricher:     enricher,
		personalizer: personalizer,
		campaigner:   campaigner,
		cfg:          cfg,
	}
}

// RunDaily executes one discovery-to-enqueue pass and records it.
func (p *Pipeline) RunDaily(ctx context.Context) (*model.RunSummary, error) {
	log := zap.L().Named("pipeline")
	log.Info("daily pass starting", zap.Bool("dry_run", p.cfg.DryRun))

	if p.cfg.DryRun {
		summary := &model.RunSummary{}
		if err := p.discover(ctx, summary); err != nil {
			return summary, err
		}
		log.Info("dry run complete",
			zap.Int("discovered", summary.Discovered),
			zap.Int("would_store", summary.Stored))
		return summary, nil
	}

	run, err := p.store.CreateRun(ctx, model.RunKindDaily)
	if err != nil {
		return nil, err
	}

	summary := &model.RunSummary{}
	if err := p.discover(ctx, summary); err != nil {
		p.finishRun(ctx, run.ID, model.RunStatusFailed, summary)
		return summary, err
	}
	if err := p.queue(ctx, summary); err != nil {
		p.finishRun(ctx, run.ID, model.RunStatusFailed, summary)
		return summary, err
	}

	p.finishRun(ctx, run.ID, model.RunStatusComplete, summary)
	log.Info("daily pass complete",
		zap.Int("discovered", summary.Discovered),
		zap.Int("stored", summary.Stored),
		zap.Int("enqueued", summary.Enqueued),
		zap.Int("errors", summary.Errors.Total()))
	return summary, nil
}

// discover sources candidates, dedupes, enriches, scores, and stores them.
func (p *Pipeline) discover(ctx context.Context, summary *model.RunSummary) error {
	log := zap.L().Named("pipeline")

	ix, err := dedupe.Build(ctx, p.store)
	if err != nil {
		return err
	}

	rep, err := p.sourcer.Discover(ctx)
	if err != nil {
		return err
	}
	summary.Discovered = len(rep.Candidates)
	for _, ferr := range rep.Failures {
		countError(&summary.Errors, ferr)
	}

	for _, c := range rep.Candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if summary.Stored >= p.cfg.DailyTarget {
			log.Info("daily target reached", zap.Int("stored", summary.Stored))
			break
		}

		fp := dedupe.Fingerprint(c.Company, c.City)
		if ix.Exists(fp, "") {
			summary.Deduped++
			continue
		}

		lead := leadFromCandidate(c, fp)

		res, err := p.enricher.Enrich(ctx, c.Company, c.Website)
		if err != nil {
			countError(&summary.Errors, err)
			log.Warn("enrichment failed, skipping candidate",
				zap.String("company", c.Company), zap.Error(err))
			continue
		}
		if res.Miss {
			summary.EnrichMisses++
		} else {
			summary.Enriched++
			applyEnrichment(&lead, res)
		}

		if ix.Exists(fp, lead.Email) {
			summary.Deduped++
			continue
		}

		lead.LeadScore = scorer.Score(scorer.Input{
			EmailVerified: lead.EmailVerified,
			EmployeeCount: lead.EmployeeCount,
			Industry:      lead.Industry,
			Website:       lead.Website,
			Phone:         lead.Phone,
			LinkedIn:      lead.LinkedIn,
			Notes:         lead.Notes,
		}, p.cfg.Scoring)

		if p.cfg.DryRun {
			ix.Register(fp, lead.Email)
			summary.Stored++
			continue
		}

		if err := p.store.InsertLead(ctx, &lead); err != nil {
			countError(&summary.Errors, err)
			log.Warn("insert failed, skipping candidate",
				zap.String("company", c.Company), zap.Error(err))
			continue
		}
		ix.Register(fp, lead.Email)
		summary.Stored++
	}
	return nil
}

// queue personalizes and enqueues fresh leads up to the daily cap.
func (p *Pipeline) queue(ctx context.Context, summary *model.RunSummary) error {
	log := zap.L().Named("pipeline")

	campaignID, err := p.campaigner.ResolveCampaign(ctx, p.cfg.Sequences)
	if err != nil {
		countError(&summary.Errors, err)
		log.Warn("campaign unavailable, skipping queue phase", zap.Error(err))
		return nil
	}

	fresh, err := p.store.ListLeadsByStatus(ctx, model.StatusNew, 0)
	if err != nil {
		return err
	}

	queued := 0
	for _, lead := range fresh {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if queued >= p.cfg.DailyCap {
			break
		}
		if lead.Email == "" || lead.SentCount() > 0 {
			continue
		}

		generated, err := p.personalizer.Generate(ctx, lead)
		if err != nil {
			countError(&summary.Errors, err)
			log.Warn("personalization failed, skipping lead",
				zap.String("company", lead.Company), zap.Error(err))
			continue
		}
		summary.Personalized++

		externalID, err := p.campaigner.Enqueue(ctx, campaignID, lead, generated.Variables())
		if err != nil {
			countError(&summary.Errors, err)
			log.Warn("enqueue failed, skipping lead",
				zap.String("company", lead.Company), zap.Error(err))
			continue
		}

		status := model.StatusQueued
		if _, err := p.store.UpdateLead(ctx, lead.ID, store.LeadUpdate{
			Status:     &status,
			ExternalID: &externalID,
		}); err != nil {
			countError(&summary.Errors, err)
			log.Warn("status update failed",
				zap.String("company", lead.Company), zap.Error(err))
			continue
		}

		summary.Enqueued++
		queued++
	}
	return nil
}

// RunReconcile pulls provider engagement and folds it back into the store.
// Re-running it against unchanged provider state is a no-op.
func (p *Pipeline) RunReconcile(ctx context.Context) (*model.RunSummary, error) {
	log := zap.L().Named("pipeline")
	log.Info("reconcile pass starting")

	run, err := p.store.CreateRun(ctx, model.RunKindReconcile)
	if err != nil {
		return nil, err
	}
	summary := &model.RunSummary{}

	campaignID, err := p.campaigner.ResolveCampaign(ctx, p.cfg.Sequences)
	if err != nil {
		p.finishRun(ctx, run.ID, model.RunStatusFailed, summary)
		return summary, err
	}

	records, err := p.campaigner.FetchEngagement(ctx, campaignID)
	if err != nil {
		p.finishRun(ctx, run.ID, model.RunStatusFailed, summary)
		return summary, err
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			p.finishRun(ctx, run.ID, model.RunStatusFailed, summary)
			return summary, ctx.Err()
		}
		p.reconcileRecord(ctx, rec, summary)
	}

	p.finishRun(ctx, run.ID, model.RunStatusComplete, summary)
	log.Info("reconcile pass complete",
		zap.Int("synced", summary.Synced),
		zap.Int("replies", summary.RepliesFound),
		zap.Int("unmatched", summary.Unmatched))
	return summary, nil
}

func (p *Pipeline) reconcileRecord(ctx context.Context, rec outreach.EngagementRecord, summary *model.RunSummary) {
	log := zap.L().Named("pipeline")

	lead, err := p.matchLead(ctx, rec)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			summary.Unmatched++
			return
		}
		countError(&summary.Errors, err)
		return
	}

	upd := store.LeadUpdate{}
	changed := false

	if rec.Opens > lead.Opens {
		upd.Opens = &rec.Opens
		changed = true
	}
	if rec.Clicks > lead.Clicks {
		upd.Clicks = &rec.Clicks
		changed = true
	}

	if rec.SentSteps != lead.EmailSent && model.CanAdvanceSteps(lead.EmailSent, rec.SentSteps) {
		steps := rec.SentSteps
		upd.EmailSent = &steps
		changed = true
	}

	if target, ok := targetStatus(lead, rec); ok {
		upd.Status = &target
		changed = true
		if target == model.StatusReplied {
			summary.RepliesFound++
		}
	}

	if rec.ReplyText != "" && !strings.Contains(lead.Response, rec.ReplyText) {
		response := rec.ReplyText
		if lead.Response != "" {
			response = lead.Response + " | " + rec.ReplyText
		}
		upd.Response = &response
		changed = true
	}

	if rec.LastContact != nil && (lead.LastContact == nil || rec.LastContact.After(*lead.LastContact)) {
		upd.LastContact = rec.LastContact
		changed = true
	}

	if !changed {
		return
	}

	if _, err := p.store.UpdateLead(ctx, lead.ID, upd); err != nil {
		countError(&summary.Errors, err)
		log.Warn("reconcile update failed",
			zap.String("company", lead.Company), zap.Error(err))
		return
	}
	summary.Synced++
}

// matchLead correlates a provider record by external ID first, then email.
func (p *Pipeline) matchLead(ctx context.Context, rec outreach.EngagementRecord) (*model.Lead, error) {
	if rec.ExternalLeadID != "" {
		lead, err := p.store.FindLeadByExternalID(ctx, rec.ExternalLeadID)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if rec.Email == "" {
		return nil, store.ErrNotFound
	}
	return p.store.FindLeadByEmail(ctx, rec.Email)
}

// targetStatus derives the lifecycle status implied by provider engagement.
// Only forward moves are reported.
func targetStatus(lead *model.Lead, rec outreach.EngagementRecord) (model.Status, bool) {
	var target model.Status
	switch {
	case rec.Replied:
		target = model.StatusReplied
	case rec.SentSteps != [model.SequenceSteps]bool{}:
		target = model.StatusContacted
	default:
		return "", false
	}

	if target == lead.Status || !model.CanTransition(lead.Status, target) {
		return "", false
	}
	return target, true
}

func (p *Pipeline) finishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) {
	if err := p.store.CompleteRun(ctx, runID, status, summary); err != nil {
		zap.L().Warn("complete run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func leadFromCandidate(c source.Candidate, fingerprint string) model.Lead {
	return model.Lead{
		Company:     c.Company,
		Phone:       c.Phone,
		Website:     c.Website,
		City:        c.City,
		Country:     c.Country,
		Fingerprint: fingerprint,
		Source:      "google_maps",
		Status:      model.StatusNew,
	}
}

func applyEnrichment(lead *model.Lead, res *enrich.Result) {
	if res.Org != nil {
		lead.Industry = res.Org.Industry
		lead.EmployeeCount = res.Org.EstimatedNumEmployees
		if lead.Website == "" {
			lead.Website = res.Org.WebsiteURL
		}
		if res.Org.LinkedInURL != "" {
			lead.LinkedIn = res.Org.LinkedInURL
		}
		lead.Notes = res.Notes()
	}
	if res.Contact != nil {
		lead.ContactName = res.Contact.Name
		lead.Title = res.Contact.Title
		lead.Email = dedupe.NormalizeEmail(res.Contact.Email)
		lead.EmailVerified = res.EmailVerified()
		if res.Contact.LinkedInURL != "" {
			lead.LinkedIn = res.Contact.LinkedInURL
		}
	}
}

func countError(counts *model.ErrorCounts, err error) {
	switch {
	case resilience.IsProviderUnavailable(err):
		counts.ProviderUnavailable++
	case errors.Is(err, personalize.ErrGenerationFailed):
		counts.GenerationFailed++
	case errors.Is(err, outreach.ErrCampaignRejected):
		counts.CampaignRejected++
	case errors.Is(err, store.ErrDuplicateLead):
		counts.DuplicateLead++
	case errors.Is(err, store.ErrInvalidTransition):
		counts.InvalidTransition++
	case errors.Is(err, store.ErrNotFound):
		counts.NotFound++
	default:
		counts.Other++
	}
}
