// Package orch drives the office simulation one step at a time: it asks the
// dispatcher model who should act, routes the chosen issue through its
// workflow stage, and records every step to the audit sinks.
package orch

import (
	"fmt"
	"path/filepath"
	"sync"

	"osgpt/pkg/ability"
	"osgpt/pkg/config"
	"osgpt/pkg/eventlog"
	"osgpt/pkg/gateway"
	"osgpt/pkg/logx"
	"osgpt/pkg/metrics"
	"osgpt/pkg/persistence"
	"osgpt/pkg/prompt"
	"osgpt/pkg/schema"
	"osgpt/pkg/selector"
	"osgpt/pkg/storage"
)

// Orchestrator owns one workspace and steps it forward.
type Orchestrator struct {
	cfg      *config.Config
	ws       *schema.Workspace
	project  *schema.Project
	operator *schema.User

	client   gateway.Client
	builder  *prompt.Builder
	selector *selector.Selector

	registries map[string]*ability.Registry // keyed by user name
	actors     map[string]*config.ActorConfig

	recorder *metrics.Recorder
	tokens   *metrics.TokenCounter
	store    *persistence.Store
	events   *eventlog.Writer
	logger   *logx.Logger

	mu sync.Mutex
}

// New bootstraps the workspace, project, and roster from cfg and wires the
// audit sinks. client is the already-wrapped model client shared by all
// actors. Close the orchestrator when done.
func New(cfg *config.Config, client gateway.Client) (*Orchestrator, error) {
	// Files live under a per-project directory so two projects sharing a
	// storage root never collide.
	files, err := storage.NewDir(filepath.Join(cfg.Workspace.StorageRoot, cfg.Project.Key))
	if err != nil {
		return nil, fmt.Errorf("opening workspace storage: %w", err)
	}

	ws := schema.NewWorkspace(cfg.Workspace.Name, files)
	project := schema.NewProject(cfg.Project.Key, cfg.Project.Name)
	if len(cfg.Workflow) > 0 {
		project.Workflow = workflowFrom(cfg.Workflow)
	}
	ws.AddProject(project)

	// The operator is the human the agents work for; new problems arrive
	// as issues reported by them.
	operator := &schema.User{
		ID:       "operator",
		Name:     "Operator",
		JobTitle: "Client",
		Role:     schema.RoleOwner,
		Type:     schema.UserTypeHuman,
	}
	ws.AddMember(operator)

	registries := make(map[string]*ability.Registry, len(cfg.Actors))
	actors := make(map[string]*config.ActorConfig, len(cfg.Actors))
	for i := range cfg.Actors {
		ac := &cfg.Actors[i]
		user := &schema.User{
			ID:       ac.ID,
			Name:     ac.Name,
			JobTitle: ac.JobTitle,
			Role:     schema.Role(ac.Role),
			Type:     schema.UserTypeAgent,
		}
		if user.Role == "" {
			user.Role = schema.RoleMember
		}
		ws.AddMember(user)
		project.AddMember(user, ac.Leader)

		registry, err := registryFor(ac)
		if err != nil {
			return nil, fmt.Errorf("actor %s: %w", ac.ID, err)
		}
		registries[ac.Name] = registry
		actors[ac.Name] = ac
	}

	builder, err := prompt.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("loading prompt templates: %w", err)
	}

	store, err := persistence.Open(cfg.Workspace.DBPath)
	if err != nil {
		return nil, err
	}
	events, err := eventlog.NewWriter(cfg.Workspace.LogDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	tokens, err := metrics.NewTokenCounter()
	if err != nil {
		_ = store.Close()
		_ = events.Close()
		return nil, err
	}

	logger := logx.NewLogger("orchestrator")
	return &Orchestrator{
		cfg:        cfg,
		ws:         ws,
		project:    project,
		operator:   operator,
		client:     client,
		builder:    builder,
		selector:   selector.New(client, builder, logger),
		registries: registries,
		actors:     actors,
		recorder:   metrics.NewRecorder(),
		tokens:     tokens,
		store:      store,
		events:     events,
		logger:     logger,
	}, nil
}

// workflowFrom converts the configured transitions, already validated by the
// config package, into the project workflow.
func workflowFrom(transitions []config.TransitionConfig) *schema.Workflow {
	edges := make([]schema.Transition, len(transitions))
	for i, tr := range transitions {
		edges[i] = schema.Transition{
			Name: tr.Name,
			From: schema.Status(tr.From),
			To:   schema.Status(tr.To),
		}
	}
	return schema.NewWorkflow(edges...)
}

// registryFor builds the actor's ability set. An empty list means all
// builtins.
func registryFor(ac *config.ActorConfig) (*ability.Registry, error) {
	builtin := ability.Builtin()
	if len(ac.Abilities) == 0 {
		return builtin, nil
	}
	registry := ability.NewRegistry()
	for _, name := range ac.Abilities {
		a, ok := builtin.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown ability %q", name)
		}
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Workspace exposes the simulated workspace.
func (o *Orchestrator) Workspace() *schema.Workspace { return o.ws }

// Project exposes the single project of this run.
func (o *Orchestrator) Project() *schema.Project { return o.project }

// Recorder exposes the metrics recorder, for serving /metrics.
func (o *Orchestrator) Recorder() *metrics.Recorder { return o.recorder }

// Close flushes and closes the audit sinks.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	storeErr := o.store.Close()
	eventsErr := o.events.Close()
	if storeErr != nil {
		return storeErr
	}
	return eventsErr
}
