package captcha

import (
	"context"
	"encoding/base64"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const (
	stubSolutionsCount = 16
	stubSolutionLength = 8
)

// Remote is the part of the API the self-test needs. *Client implements it.
type Remote interface {
	Domain() string
	FetchPuzzle(ctx context.Context, sitekey string) (string, error)
	Verify(ctx context.Context, solution string) (*VerifyOutput, error)
}

var _ Remote = (*Client)(nil)

// StubSolutions returns the base64 encoding of an all-zero solutions blob.
func StubSolutions() string {
	return base64.StdEncoding.EncodeToString(make([]byte, stubSolutionsCount*stubSolutionLength))
}

// StubPayload joins the stub solutions with a puzzle the way a widget would.
func StubPayload(puzzle string) string {
	return StubSolutions() + "." + puzzle
}

// SelfTest proves that the remote's API key and sitekey belong to a real property:
// it fetches a puzzle, submits a zero-filled stub solution for it and expects exactly the
// test-property rejection. Any other outcome, error or panic is reported as false.
func SelfTest(ctx context.Context, remote Remote, sitekey string) (ok bool) {
	logger := log.WithFields(log.Fields{"domain": remote.Domain()})
	defer func() {
		if r := recover(); r != nil {
			logger.WithError(fmt.Errorf("%v", r)).Error("Settings self-test panicked")
			ok = false
		}
	}()

	puzzle, err := remote.FetchPuzzle(ctx, sitekey)
	if err != nil {
		logger.WithError(err).Warn("Settings self-test: failed to fetch test puzzle")
		return false
	}

	out, err := remote.Verify(ctx, StubPayload(puzzle))
	if err != nil {
		logger.WithError(err).Warn("Settings self-test: verify failed")
		return false
	}
	if out == nil {
		logger.Warn("Settings self-test: empty verify result")
		return false
	}
	if !out.Success || out.Code != SelfTestPassCode {
		logger.WithFields(log.Fields{
			"success": out.Success,
			"code":    out.Code.String(),
		}).Warn("Settings self-test: unexpected verify result")
		return false
	}
	logger.Debug("Settings self-test passed")
	return true
}
