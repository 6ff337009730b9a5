package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var WorkerCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsbot_worker_commands_total",
	Help: "Persistence commands executed by the worker",
}, []string{"kind", "result"})

var WorkerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "newsbot_worker_queue_depth",
	Help: "Commands waiting in the persistence queue",
})

var FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsbot_feed_fetches_total",
	Help: "Feed fetch attempts",
}, []string{"result"})

var CandidatesCollected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "newsbot_candidates_collected_total",
	Help: "Unseen feed items handed to the pipeline",
})

// EnrichmentFallbacks counts rewrites and images replaced by their fallback.
var EnrichmentFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsbot_enrichment_fallbacks_total",
	Help: "Enrichment steps that fell back to a default",
}, []string{"kind"})

var ModerationSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsbot_moderation_submissions_total",
	Help: "Candidates sent to the moderator chat",
}, []string{"result"})

var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsbot_decisions_total",
	Help: "Moderator decisions handled",
}, []string{"action", "result"})

var PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsbot_pipeline_runs_total",
	Help: "Scheduler pipeline runs",
}, []string{"result"})

var TelegramRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "newsbot_telegram_requests_total",
	Help: "Bot API calls",
}, []string{"method", "result"})
