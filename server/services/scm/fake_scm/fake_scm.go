// Package fake_scm is a test/dev stand-in for trigger.SCM, loosely modelled on the teacher's
// original FakeSCMService: instead of simulating a whole source-control org/repo graph, it just
// hands back commit shas that a test has pre-registered for a (scmContext, scmUri) pair.
package fake_scm

import (
	"context"
	"fmt"
	"sync"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
)

type commitKey struct {
	scmContext string
	scmUri     string
}

// FakeSCMService is an implementation of trigger.SCM designed for testing: the commit sha
// returned for a (scmContext, scmUri) pair is whatever was last set with SetCommitSha, defaulting
// to a deterministic "fakesha-<scmContext>-<scmUri>" value so callers that don't care about a
// specific sha need not register one.
type FakeSCMService struct {
	mutex sync.RWMutex
	shas  map[commitKey]string
	logger.Log
}

func NewFakeSCMService(logFactory logger.LogFactory) *FakeSCMService {
	return &FakeSCMService{
		shas: make(map[commitKey]string),
		Log:  logFactory("FakeSCMService"),
	}
}

// SetCommitSha registers the sha that GetCommitSha should return for the given (scmContext, scmUri).
func (s *FakeSCMService) SetCommitSha(scmContext string, scmUri string, sha string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.shas[commitKey{scmContext: scmContext, scmUri: scmUri}] = sha
}

// GetCommitSha returns the commit sha previously registered for opts.ScmContext/opts.ScmUri via
// SetCommitSha. If no sha has been registered this generates a deterministic fake one instead of
// failing, since tests that don't care about the exact sha shouldn't need to register one.
func (s *FakeSCMService) GetCommitSha(ctx context.Context, opts trigger.GetCommitShaOptions) (string, error) {
	if opts.ScmUri == "" {
		return "", gerror.NewErrValidationFailed("scm uri must be set")
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if sha, ok := s.shas[commitKey{scmContext: opts.ScmContext, scmUri: opts.ScmUri}]; ok {
		return sha, nil
	}
	return fmt.Sprintf("fakesha-%s-%s", opts.ScmContext, opts.ScmUri), nil
}
