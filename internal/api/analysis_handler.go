package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"goparam/app"
	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/internal/errors"
	"goparam/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Analyzer runs one analysis; app.AnalysisService satisfies it
type Analyzer interface {
	Run(ctx context.Context, req app.AnalysisRequest) (*analysis.Report, error)
}

// AnalyzeRequest is the JSON body of POST /api/analyze. With no runs the
// analyzer's configured run source is used.
type AnalyzeRequest struct {
	Name       string       `json:"name"`
	Target     string       `json:"target"`
	Model      string       `json:"model"`
	Seed       int64        `json:"seed"`
	Candidates int          `json:"candidates"`
	Treatment  string       `json:"treatment"`
	Phases     []string     `json:"phases"`
	Runs       []run.Record `json:"runs"`
}

// ParsePhases maps phase names to app.Phases; empty selects every phase
func ParsePhases(names []string) (app.Phases, error) {
	if len(names) == 0 {
		return app.AllPhases(), nil
	}
	var p app.Phases
	for _, n := range names {
		switch n {
		case "importance":
			p.Importance = true
		case "recommend":
			p.Recommend = true
		case "causal":
			p.Causal = true
		default:
			return app.Phases{}, errors.InvalidInput(fmt.Sprintf("unknown phase %q (want importance, recommend or causal)", n))
		}
	}
	return p, nil
}

// AnalysisHandler serves the analysis API
type AnalysisHandler struct {
	analyzer Analyzer
	repo     ports.RunRepository
	events   *EventHub

	mu     sync.RWMutex
	latest *analysis.Report
}

// NewAnalysisHandler creates a handler. repo and events may be nil.
func NewAnalysisHandler(analyzer Analyzer, repo ports.RunRepository, events *EventHub) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, repo: repo, events: events}
}

// RegisterRoutes mounts the API under /api
func (h *AnalysisHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/analyze", h.Analyze)
	api.GET("/reports/:id", h.GetReport)
	if h.events != nil {
		api.GET("/events", h.events.HandleSSE)
	}
}

// Health reports liveness
func (h *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Analyze runs an analysis over the posted runs and returns the report
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var body AnalyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, errors.ParseError("request body", err))
		return
	}
	phases, err := ParsePhases(body.Phases)
	if err != nil {
		respondError(c, err)
		return
	}

	requestID := uuid.NewString()
	h.publish(AnalysisEvent{EventType: EventStarted, RequestID: requestID, Target: body.Target, Runs: len(body.Runs)})

	req := app.AnalysisRequest{
		Name:       body.Name,
		Target:     body.Target,
		ModelKind:  body.Model,
		Seed:       body.Seed,
		Candidates: body.Candidates,
		Treatment:  body.Treatment,
		Phases:     phases,
	}
	if len(body.Runs) > 0 {
		req.Records = body.Runs
	}

	report, err := h.analyzer.Run(c.Request.Context(), req)
	if err != nil {
		log.Printf("[API] analysis %s failed: %v", requestID, err)
		h.publish(AnalysisEvent{EventType: EventFailed, RequestID: requestID, Error: err.Error()})
		respondError(c, err)
		return
	}

	h.mu.Lock()
	h.latest = report
	h.mu.Unlock()
	h.publish(AnalysisEvent{
		EventType: EventCompleted,
		RequestID: requestID,
		ReportID:  report.ID.String(),
		Target:    report.Target,
		Runs:      report.Summary.Runs,
	})
	c.JSON(http.StatusOK, report)
}

// GetReport returns a report by ID; "latest" is the last one produced here
func (h *AnalysisHandler) GetReport(c *gin.Context) {
	id := c.Param("id")
	if id == "latest" {
		if report := h.Latest(); report != nil {
			c.JSON(http.StatusOK, report)
			return
		}
		respondError(c, errors.NotFound("report"))
		return
	}

	if h.repo == nil {
		respondError(c, errors.NotFound("report "+id))
		return
	}
	reportID, err := core.ParseReportID(id)
	if err != nil {
		respondError(c, errors.InvalidInput(err.Error()))
		return
	}
	report, err := h.repo.GetReport(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, errors.Wrap(err, "failed to load report"))
		return
	}
	c.JSON(http.StatusOK, report)
}

// Latest returns the most recent report produced by this handler
func (h *AnalysisHandler) Latest() *analysis.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

func (h *AnalysisHandler) publish(event AnalysisEvent) {
	if h.events != nil {
		h.events.Publish(event)
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
