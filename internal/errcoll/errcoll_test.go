package errcoll_test

import (
	"context"
	"testing"

	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/NetMapper/internal/nmtest"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRefreshErrorHandler_Handle(t *testing.T) {
	var collected []error
	errColl := &nmtest.ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			collected = append(collected, err)
		},
	}

	h := errcoll.NewRefreshErrorHandler(slogutil.NewDiscardLogger(), errColl)

	const testErr errors.Error = "test error"
	h.Handle(testutil.ContextWithTimeout(t, testTimeout), testErr)

	if assert.Len(t, collected, 1) {
		assert.ErrorIs(t, collected[0], testErr)
		testutil.AssertErrorMsg(t, "refreshing: test error", collected[0])
	}
}
