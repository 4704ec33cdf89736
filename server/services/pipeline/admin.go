package pipeline

import (
	"context"
	"sync"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
)

// TokenSource mints a short-lived source-control token for a pipeline's admin user (§6
// "unsealToken() → string"). Real deployments would back this with a credential store; the
// trimmed-down trigger engine has none, so the default implementation (StaticTokenSource) just
// hands back a pre-registered token per username.
type TokenSource interface {
	Token(ctx context.Context, username models.ResourceName) (string, error)
}

// StaticTokenSource is a TokenSource backed by an in-memory map, set up once at wiring time.
// This stands in for the credential-unsealing machinery the original SCM integration would
// otherwise provide (out of scope per SPEC_FULL.md's Non-goals on full SCM sync).
type StaticTokenSource struct {
	mutex  sync.RWMutex
	tokens map[models.ResourceName]string
}

func NewStaticTokenSource(tokens map[models.ResourceName]string) *StaticTokenSource {
	if tokens == nil {
		tokens = make(map[models.ResourceName]string)
	}
	return &StaticTokenSource{tokens: tokens}
}

func (s *StaticTokenSource) SetToken(username models.ResourceName, token string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tokens[username] = token
}

func (s *StaticTokenSource) Token(ctx context.Context, username models.ResourceName) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	token, ok := s.tokens[username]
	if !ok {
		return "", gerror.NewErrNotFound("no token registered for pipeline admin username " + username.String())
	}
	return token, nil
}

// admin is the PipelineAdmin collaborator (§6 "Pipeline.admin") backing a single pipeline's
// AdminUsername, resolving its token lazily and only for the duration of a single call (§5: never
// cached across calls).
type admin struct {
	username models.ResourceName
	source   TokenSource
}

func (a *admin) Username() models.ResourceName {
	return a.username
}

func (a *admin) UnsealToken(ctx context.Context) (string, error) {
	return a.source.Token(ctx, a.username)
}

var _ trigger.PipelineAdmin = (*admin)(nil)
