// Package pipeline runs one ranking request through the search state machine:
// data check, lazy embedding, retrieval, scoring, fusion, optional reranking.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jonathan/cv-ranker/internal/catalog"
	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/embedding"
	"github.com/jonathan/cv-ranker/internal/impact"
	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/ranking"
	"github.com/jonathan/cv-ranker/internal/rerank"
	"github.com/jonathan/cv-ranker/internal/retrieval"
	"github.com/jonathan/cv-ranker/internal/skills"
	"github.com/jonathan/cv-ranker/internal/store"
	"github.com/jonathan/cv-ranker/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators of a Searcher.
type Deps struct {
	Catalog  *catalog.Catalog
	Vectors  store.VectorStore
	Embedder embedding.Backend
	Taxonomy *skills.Taxonomy
	// Reranker may be nil, which disables reranking.
	Reranker *rerank.Adapter
	Scoring  config.ScoringConfig
	Logger   *zap.Logger
}

// Searcher ranks the CVs of a (company, job) key. It is safe for concurrent use.
type Searcher struct {
	catalog   *catalog.Catalog
	vectors   store.VectorStore
	indexer   *retrieval.Indexer
	scorer    *retrieval.Scorer
	matcher   *skills.Matcher
	extractor *impact.Extractor
	reranker  *rerank.Adapter
	cfg       config.ScoringConfig
	logger    *zap.Logger
}

// NewSearcher validates the scoring config once and wires the stages.
func NewSearcher(deps Deps) (*Searcher, error) {
	if deps.Catalog == nil || deps.Vectors == nil || deps.Embedder == nil {
		return nil, fmt.Errorf("searcher requires a catalog, a vector store and an embedder")
	}
	cfg, err := deps.Scoring.Finalize()
	if err != nil {
		return nil, err
	}
	logger := logging.OrNop(deps.Logger)
	reranker := deps.Reranker
	if reranker == nil {
		reranker = rerank.NewAdapter(nil, cfg, logger)
	}

	return &Searcher{
		catalog: deps.Catalog,
		vectors: deps.Vectors,
		indexer: retrieval.NewIndexer(deps.Embedder, deps.Vectors, cfg.MaxConcurrency, logger),
		scorer:  retrieval.NewScorer(deps.Vectors, cfg),
		matcher: skills.NewMatcher(deps.Taxonomy, deps.Embedder, skills.Options{
			SemanticEnabled: cfg.SemanticEnabled,
			Threshold:       cfg.SemanticRelevanceThreshold,
			MinChars:        cfg.SemanticMinChars,
		}, logger),
		extractor: impact.NewExtractor(cfg.ImpactTopEvents),
		reranker:  reranker,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Config returns the finalized scoring config.
func (s *Searcher) Config() config.ScoringConfig {
	return s.cfg
}

// Matcher returns the skill matcher shared by all searches.
func (s *Searcher) Matcher() *skills.Matcher {
	return s.matcher
}

// scored is the per-candidate output of the SCORING state.
type scored struct {
	cv        *types.CVRecord
	base      retrieval.SectionScore
	lexical   float64
	mandatory skills.Coverage
	optional  skills.Coverage
	impact    impact.Result
	relevance impact.Relevance
}

// Search runs one request. DataNotFound and EmbeddingUnavailable errors are
// returned as is; reranker failures only downgrade the response.
func (s *Searcher) Search(ctx context.Context, req types.SearchRequest, onProgress ProgressCallback) (*types.SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}
	requestID := uuid.New().String()
	log := s.logger.With(
		zap.String("request_id", requestID),
		zap.String("company", req.Company),
		zap.String("job", req.Job))
	sm := newMachine(requestID, func(e ProgressEvent) {
		log.Info("search state", zap.String("state", string(e.State)), zap.String("message", e.Message))
		if onProgress != nil {
			onProgress(e)
		}
	})

	jd, err := s.catalog.LoadJD(ctx, req.Company, req.Job)
	if err != nil {
		return nil, err
	}
	cvs, skipped, err := s.catalog.LoadCVs(ctx, req.Company, req.Job)
	if err != nil {
		return nil, err
	}
	if len(cvs) == 0 {
		return nil, &types.DataNotFoundError{Company: req.Company, Job: req.Job, What: "rankable CV"}
	}

	stats, err := s.ensureEmbedded(ctx, sm, req, jd, cvs)
	if err != nil {
		return nil, err
	}

	if err := sm.enter(StateRetrieving, fmt.Sprintf("retrieving sections for %d candidates", len(cvs))); err != nil {
		return nil, err
	}
	jdVectors, err := s.indexer.JDVectors(ctx, req.Company, req.Job, jd.ID)
	if err != nil {
		return nil, err
	}
	if len(jdVectors) == 0 {
		return nil, &types.EmbeddingUnavailableError{Model: "vector store", Cause: fmt.Errorf("no vectors stored for job description %s", jd.ID)}
	}

	if err := sm.enter(StateScoring, "scoring candidates"); err != nil {
		return nil, err
	}
	results, err := s.score(ctx, req, jd, cvs, jdVectors)
	if err != nil {
		return nil, err
	}

	if err := sm.enter(StateFusing, "fusing scores"); err != nil {
		return nil, err
	}
	candidates := s.fuse(results, req.ShowDetails)
	ranking.SortCandidates(candidates)

	reranked, status := false, types.RerankStatusDisabled
	if s.wantRerank(req) {
		if err := sm.enter(StateReranking, fmt.Sprintf("reranking top %d", min(s.cfg.RerankTopN, len(candidates)))); err != nil {
			return nil, err
		}
		reranked, status = s.rerank(ctx, jd, cvs, candidates)
	}

	if err := sm.enter(StateResults, fmt.Sprintf("%d candidates ranked", len(candidates))); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	return &types.SearchResponse{
		RequestID:    requestID,
		Company:      req.Company,
		Job:          req.Job,
		Reranked:     reranked,
		RerankStatus: status,
		Embedded:     stats.Embedded,
		Total:        len(candidates),
		Candidates:   ranking.TopK(candidates, topK),
		Skipped:      skipped,
		States:       sm.States(),
	}, nil
}

func (s *Searcher) ensureEmbedded(ctx context.Context, sm *machine, req types.SearchRequest, jd *types.JobDescription, cvs []*types.CVRecord) (retrieval.IndexStats, error) {
	if ok, err := s.hasAllVectors(ctx, req, cvs); err != nil {
		return retrieval.IndexStats{}, err
	} else if ok {
		return retrieval.IndexStats{}, nil
	}
	if err := sm.enter(StateEmbedding, "embedding records on demand"); err != nil {
		return retrieval.IndexStats{}, err
	}
	return s.indexer.EnsureEmbedded(ctx, req.Company, req.Job, jd, cvs, false)
}

// hasAllVectors reports whether the JD and every CV already have vectors.
func (s *Searcher) hasAllVectors(ctx context.Context, req types.SearchRequest, cvs []*types.CVRecord) (bool, error) {
	n, err := s.vectors.Count(ctx, store.JDCollection(req.Company, req.Job))
	if err != nil {
		return false, fmt.Errorf("failed to count JD vectors: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	owners, err := s.vectors.OwnerIDs(ctx, store.CVCollection(req.Company, req.Job))
	if err != nil {
		return false, fmt.Errorf("failed to list embedded CVs: %w", err)
	}
	have := make(map[string]bool, len(owners))
	for _, id := range owners {
		have[id] = true
	}
	for _, cv := range cvs {
		if !have[cv.ID] {
			return false, nil
		}
	}
	return true, nil
}

func (s *Searcher) score(ctx context.Context, req types.SearchRequest, jd *types.JobDescription, cvs []*types.CVRecord, jdVectors map[string][]float32) ([]scored, error) {
	mandatory, optional := skills.DeriveJDSkills(s.matcher.Taxonomy(), jd)
	cvCollection := store.CVCollection(req.Company, req.Job)

	texts := make([]string, len(cvs))
	for i, cv := range cvs {
		texts[i] = cv.FullText()
	}
	lexical := ranking.LexicalScores(jd.FullText(), texts)

	results := make([]scored, len(cvs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, cv := range cvs {
		g.Go(func() error {
			base, err := s.scorer.Score(gctx, cvCollection, cv.ID, jdVectors)
			if err != nil {
				return fmt.Errorf("failed to score CV %s: %w", cv.ID, err)
			}
			spans := ingestion.SplitSentences(texts[i])
			extracted := s.extractor.Extract(cv)
			results[i] = scored{
				cv:        cv,
				base:      base,
				lexical:   lexical[i],
				mandatory: s.matcher.Coverage(gctx, mandatory, texts[i], spans, s.cfg.FamilyAdjacencyCredit),
				optional:  s.matcher.Coverage(gctx, optional, texts[i], spans, s.cfg.FamilyAdjacencyCredit),
				impact:    extracted,
				relevance: impact.ComputeRelevance(gctx, s.matcher, extracted.Events, mandatory),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Searcher) fuse(results []scored, showDetails bool) []types.CandidateResult {
	candidates := make([]types.CandidateResult, len(results))
	for i, r := range results {
		components := ranking.Fuse(ranking.Signals{
			VectorScore:          r.base.VectorScore,
			LexicalScore:         r.lexical,
			MandatoryCoverage:    r.mandatory.Ratio,
			OptionalCoverage:     r.optional.Ratio,
			ImpactRelevanceRatio: r.relevance.Ratio,
			ImpactEventCount:     r.impact.Count,
		}, s.cfg)

		c := types.CandidateResult{
			CandidateID:     r.cv.ID,
			Name:            r.cv.Name,
			ScoreComponents: components,
			FinalScore:      components.CombinedScore,
			SectionScores:   r.base.Sections,
			MatchedSkills:   matchedSkills(r.mandatory),
			MissingSkills:   r.mandatory.Missing,
			SemanticUsed:    r.mandatory.SemanticUsed || r.optional.SemanticUsed,
			RelevanceSkills: r.relevance.Skills,
		}
		if showDetails {
			c.ImpactEvents = r.relevance.Events
		}
		c.Notes = ranking.Explain(c)
		candidates[i] = c
	}
	return candidates
}

// matchedSkills lists the directly matched skills in sorted order.
func matchedSkills(cov skills.Coverage) []string {
	out := make([]string, 0, len(cov.Matches))
	for skill := range cov.Matches {
		out = append(out, skill)
	}
	sort.Strings(out)
	return out
}

// wantRerank honours an explicit request flag, falling back to whether a
// cross-encoder is configured.
func (s *Searcher) wantRerank(req types.SearchRequest) bool {
	if req.Rerank != nil {
		return *req.Rerank
	}
	return s.reranker.Enabled()
}

// rerank blends cross-encoder scores into the head of the sorted candidates
// and re-sorts all of them by final score. A failed rerank leaves every final
// score equal to its combined score.
func (s *Searcher) rerank(ctx context.Context, jd *types.JobDescription, cvs []*types.CVRecord, candidates []types.CandidateResult) (bool, string) {
	texts := make(map[string]string, len(cvs))
	for _, cv := range cvs {
		texts[cv.ID] = cv.FullText()
	}
	input := make([]rerank.Candidate, len(candidates))
	for i, c := range candidates {
		input[i] = rerank.Candidate{ID: c.CandidateID, Text: texts[c.CandidateID], Combined: c.CombinedScore}
	}

	outcome := s.reranker.Rerank(ctx, jd.FullText(), input)
	if !outcome.Reranked {
		return false, outcome.Status
	}
	for i, r := range outcome.Results {
		candidates[i].CrossEncoderScore = r.CrossEncoderScore
		candidates[i].FinalScore = r.FinalScore
		candidates[i].CrossEncoderStatus = r.Status
	}
	ranking.SortCandidates(candidates)
	return true, outcome.Status
}
